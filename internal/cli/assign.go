package cli

import (
	"fmt"
	"strconv"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/dispatch"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/whatsapp"

	"github.com/spf13/cobra"
)

// AssignCmd returns the assign command.
func AssignCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "assign <appointment-id> <technician-id>",
		Short: "Create a service order and send the job card to the technician",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appointmentID, err := parseID("appointment", args[0])
			if err != nil {
				return err
			}
			technicianID, err := parseID("technician", args[1])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.done()

			order, err := e.repo.CreateServiceOrder(cmd.Context(), appointmentID, technicianID)
			if err != nil {
				return fmt.Errorf("create service order: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Order #%d created for %s (%s)\n", okMark, order.ID, order.TechnicianName, order.Specialty)

			if quiet {
				return nil
			}
			wa := whatsapp.NewClient(e.cfg, e.log)
			if wa == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s WHATSAPP_URL not set; job card not sent\n", warnMark)
				return nil
			}
			if err := wa.Send(cmd.Context(), order.TechnicianAddress, jobCard(e.cfg.GetCalendarTimeZone(), order)); err != nil {
				return fmt.Errorf("send job card: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Job card sent to %s\n", okMark, order.TechnicianAddress)
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "no-notify", false, "create the order without messaging the technician")
	return cmd
}

func jobCard(tz string, order domain.OrderDetail) conversation.Message {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return dispatch.New(dispatch.Deps{Location: loc}).JobCard(order)
}

func parseID(what, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}
