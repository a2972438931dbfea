package cli

import (
	"fmt"
	"strings"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/phone"

	"github.com/spf13/cobra"
)

// StaffCmd returns the staff command group.
func StaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage agents and technicians",
	}
	cmd.AddCommand(staffAddCmd())
	cmd.AddCommand(staffStatusCmd())
	return cmd
}

func staffAddCmd() *cobra.Command {
	var roleName string

	cmd := &cobra.Command{
		Use:   "add <name> <phone>",
		Short: "Register an agent or technician",
		Example: `  dispatchctl staff add --role agent "Maria Souza" "+55 41 99999-0000"
  dispatchctl staff add --role technician "João Lima" 5541988887777`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(roleName)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("name is required")
			}
			addr, err := parseAddress(args[1])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.done()

			s, err := e.repo.AddStaff(cmd.Context(), role, name, addr)
			if err != nil {
				return fmt.Errorf("add %s: %w", role, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s #%d %s (%s) registered as %s\n", okMark, role, s.ID, s.Name, s.Address, s.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "agent or technician (required)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func staffStatusCmd() *cobra.Command {
	var roleName string

	cmd := &cobra.Command{
		Use:   "status <phone> <available|busy|offline>",
		Short: "Set the availability of an agent or technician",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(roleName)
			if err != nil {
				return err
			}
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.done()

			if err := e.repo.SetStaffStatus(cmd.Context(), role, addr, status); err != nil {
				return fmt.Errorf("set %s status: %w", role, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s is now %s\n", okMark, role, addr, statusLabel(status))
			return nil
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "agent or technician (required)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func parseRole(raw string) (domain.Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "agent", "atendente":
		return domain.RoleAgent, nil
	case "technician", "tecnico", "técnico":
		return domain.RoleTechnician, nil
	default:
		return 0, fmt.Errorf("invalid role %q (use agent or technician)", raw)
	}
}

func parseStatus(raw string) (domain.StaffStatus, error) {
	switch s := domain.StaffStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case domain.StaffAvailable, domain.StaffBusy, domain.StaffOffline:
		return s, nil
	default:
		return "", fmt.Errorf("invalid status %q (use available, busy or offline)", raw)
	}
}

func parseAddress(raw string) (string, error) {
	addr := phone.Address(raw)
	if len(addr) < 10 {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return addr, nil
}

func statusLabel(s domain.StaffStatus) string {
	switch s {
	case domain.StaffAvailable:
		return okMark + " " + string(s)
	case domain.StaffBusy:
		return warnMark + " " + string(s)
	default:
		return string(s)
	}
}
