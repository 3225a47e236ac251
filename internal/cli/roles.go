package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"evenup_web/internal/rbac"
	"evenup_web/internal/store"
)

func newRolesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List, grant and revoke admin roles",
	}
	cmd.AddCommand(newRolesListCmd(e), newRolesGrantCmd(e), newRolesRevokeCmd(e))
	return cmd
}

func newRolesListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show current role assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := e.openDB(e.cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rows, err := store.NewRoleStore(gdb).List(ctx)
			if err != nil {
				return err
			}
			ids := make([]string, len(rows))
			for i, r := range rows {
				ids[i] = r.UserID
			}
			profiles, err := store.NewProfileStore(gdb).ByIDs(ctx, ids)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tUSER\tROLE\tUPDATED")
			for _, r := range rows {
				label := "-"
				if p, ok := profiles[r.UserID]; ok {
					label = p.Label()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UserID, label, r.Role, r.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newRolesGrantCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <user-id|email> <viewer|admin|owner>",
		Short: "Assign a role, replacing any existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := rbac.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q (want viewer, admin or owner)", args[1])
			}
			gdb, err := e.openDB(e.cfg)
			if err != nil {
				return err
			}
			userID, err := resolveUser(cmd.Context(), gdb, args[0])
			if err != nil {
				return err
			}
			if err := store.NewRoleStore(gdb).Upsert(cmd.Context(), userID, role); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "✅ %s is now %s\n", userID, role)
			return nil
		},
	}
}

func newRolesRevokeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id|email>",
		Short: "Remove a user's admin access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := e.openDB(e.cfg)
			if err != nil {
				return err
			}
			userID, err := resolveUser(cmd.Context(), gdb, args[0])
			if err != nil {
				return err
			}
			if err := store.NewRoleStore(gdb).Revoke(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Role removed for %s.\n", userID)
			return nil
		},
	}
}

// resolveUser accepts a profile UUID as is and looks emails up.
func resolveUser(ctx context.Context, gdb *gorm.DB, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, err := uuid.Parse(ref); err == nil {
		return ref, nil
	}
	if !strings.Contains(ref, "@") {
		return "", fmt.Errorf("%q is neither a user id nor an email", ref)
	}
	p, err := store.NewProfileStore(gdb).FindProfileByEmail(ctx, strings.ToLower(ref))
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("no user with email %s", ref)
	}
	return p.ID, nil
}
