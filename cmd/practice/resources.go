package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiocare/practice/internal/selection"
	"github.com/audiocare/practice/pkg/apiclient"
)

const dateLayout = "2006-01-02 15:04"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func optional(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func pageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 20, "Maximum number of rows")
	cmd.Flags().Int("offset", 0, "Rows to skip")
}

func pageArgs(cmd *cobra.Command) (int, int) {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return limit, offset
}

func printMore[T any](w io.Writer, page *apiclient.Page[T]) {
	if page.HasMore && page.NextOffset != nil {
		fmt.Fprintf(w, "%d of %d shown, next page: --offset %d\n", len(page.Data), page.Total, *page.NextOffset)
	}
}

// -- Practices --

func practicesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practices",
		Short: "List and create practices",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List practices",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, offset := pageArgs(cmd)
			return a.visit(cmd, "/practices", func(ctx context.Context) error {
				page, err := a.client.ListPractices(ctx, limit, offset)
				if err != nil {
					return err
				}
				tw := newTable(a.out)
				fmt.Fprintln(tw, "ID\tNAME\tPHONE")
				for _, p := range page.Data {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, deref(p.Phone))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				printMore(a.out, page)
				return nil
			})
		},
	}
	pageFlags(listCmd)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a practice (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return errors.New("--name is required")
			}
			p := apiclient.NewPractice{
				Name:    name,
				Address: optional(cmd, "address"),
				Phone:   optional(cmd, "phone"),
			}
			return a.visit(cmd, "/practices/new", func(ctx context.Context) error {
				created, err := a.client.CreatePractice(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Created practice %s\n", created.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Practice name")
	createCmd.Flags().String("address", "", "Street address")
	createCmd.Flags().String("phone", "", "Phone number")

	cmd.AddCommand(listCmd, createCmd)
	return cmd
}

// -- Audiologists --

func audiologistsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audiologists",
		Short: "List and create audiologists",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audiologists, optionally for one practice",
		RunE: func(cmd *cobra.Command, args []string) error {
			practiceID, _ := cmd.Flags().GetString("practice")
			limit, offset := pageArgs(cmd)
			return a.visit(cmd, "/audiologists", func(ctx context.Context) error {
				page, err := a.client.ListAudiologists(ctx, practiceID, limit, offset)
				if err != nil {
					return err
				}
				tw := newTable(a.out)
				fmt.Fprintln(tw, "ID\tUSER\tPRACTICE\tSPECIALIZATION\tACTIVE")
				for _, au := range page.Data {
					active := au.IsActive == nil || *au.IsActive
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", au.ID, au.UserID, au.PracticeID, deref(au.Specialization), active)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				printMore(a.out, page)
				return nil
			})
		},
	}
	listCmd.Flags().String("practice", "", "Practice ID")
	pageFlags(listCmd)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an audiologist (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			practiceID, _ := cmd.Flags().GetString("practice")
			if userID == "" || practiceID == "" {
				return errors.New("--user and --practice are required")
			}
			au := apiclient.NewAudiologist{
				UserID:         userID,
				PracticeID:     practiceID,
				Specialization: optional(cmd, "specialization"),
			}
			return a.visit(cmd, "/audiologists/new", func(ctx context.Context) error {
				created, err := a.client.CreateAudiologist(ctx, au)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Created audiologist %s\n", created.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("user", "", "User ID from the auth provider")
	createCmd.Flags().String("practice", "", "Practice ID")
	createCmd.Flags().String("specialization", "", "Specialization")

	cmd.AddCommand(listCmd, createCmd)
	return cmd
}

// -- Appointments --

func appointmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Work with appointments",
	}
	cmd.AddCommand(
		appointmentsListCmd(a),
		appointmentsGetCmd(a),
		appointmentsCreateCmd(a),
		appointmentsUpdateCmd(a),
		transitionCmd(a, "complete", "completed", "Mark an appointment completed"),
		transitionCmd(a, "cancel", "cancelled", "Cancel an appointment"),
		transitionCmd(a, "no-show", "no-show", "Record that the patient did not attend"),
	)
	return cmd
}

// buildSelection starts from every audiologist of --practice, if given, then
// toggles each --audiologist in order. Naming an id twice removes it again.
func buildSelection(ctx context.Context, a *app, practiceID string, toggles []string) (*selection.Set, error) {
	sel := selection.New()
	if practiceID != "" {
		page, err := a.client.ListAudiologists(ctx, practiceID, 100, 0)
		if err != nil {
			return nil, err
		}
		sel.Replace(page.Data)
	}
	for _, id := range toggles {
		sel.Toggle(apiclient.Audiologist{ID: id})
	}
	return sel, nil
}

func appointmentsListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments for the selected audiologists",
		RunE: func(cmd *cobra.Command, args []string) error {
			practiceID, _ := cmd.Flags().GetString("practice")
			toggles, _ := cmd.Flags().GetStringArray("audiologist")
			limit, offset := pageArgs(cmd)
			if practiceID == "" && len(toggles) == 0 {
				return errors.New("select audiologists with --audiologist or --practice")
			}

			return a.visit(cmd, "/appointments", func(ctx context.Context) error {
				sel, err := buildSelection(ctx, a, practiceID, toggles)
				if err != nil {
					return err
				}
				if sel.Len() == 0 {
					fmt.Fprintln(a.out, "No audiologists selected.")
					return nil
				}

				tw := newTable(a.out)
				fmt.Fprintln(tw, "ID\tAUDIOLOGIST\tPATIENT\tDATE\tMINUTES\tSTATUS")
				for _, id := range sel.IDs() {
					page, err := a.client.ListAppointments(ctx, id, limit, offset)
					if err != nil {
						return err
					}
					for _, ap := range page.Data {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
							ap.ID, ap.AudiologistID, ap.PatientName,
							ap.AppointmentDate.Local().Format(dateLayout), ap.DurationMinutes, ap.Status)
					}
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringArray("audiologist", nil, "Toggle an audiologist ID in the selection (repeatable)")
	cmd.Flags().String("practice", "", "Start the selection with every audiologist of this practice")
	pageFlags(cmd)
	return cmd
}

func printAppointment(w io.Writer, ap *apiclient.Appointment) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", ap.ID)
	fmt.Fprintf(tw, "Patient:\t%s\n", ap.PatientName)
	if ap.PatientEmail != nil {
		fmt.Fprintf(tw, "Email:\t%s\n", *ap.PatientEmail)
	}
	if ap.PatientPhone != nil {
		fmt.Fprintf(tw, "Phone:\t%s\n", *ap.PatientPhone)
	}
	fmt.Fprintf(tw, "Audiologist:\t%s\n", ap.AudiologistID)
	fmt.Fprintf(tw, "Date:\t%s (%d min)\n", ap.AppointmentDate.Local().Format(dateLayout), ap.DurationMinutes)
	fmt.Fprintf(tw, "Status:\t%s\n", ap.Status)
	if ap.Notes != nil {
		fmt.Fprintf(tw, "Notes:\t%s\n", *ap.Notes)
	}
	fmt.Fprintf(tw, "Updated:\t%s\n", ap.UpdatedAt.Local().Format(time.RFC3339))
	return tw.Flush()
}

func appointmentsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.visit(cmd, "/appointments/"+args[0], func(ctx context.Context) error {
				ap, err := a.client.GetAppointment(ctx, args[0])
				if err != nil {
					return err
				}
				return printAppointment(a.out, ap)
			})
		},
	}
}

func appointmentsCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			audiologistID, _ := cmd.Flags().GetString("audiologist")
			patient, _ := cmd.Flags().GetString("patient")
			date, _ := cmd.Flags().GetString("date")
			duration, _ := cmd.Flags().GetInt("duration")
			if audiologistID == "" || patient == "" || date == "" {
				return errors.New("--audiologist, --patient and --date are required")
			}
			when, err := time.Parse(time.RFC3339, date)
			if err != nil {
				return fmt.Errorf("--date must be RFC 3339, e.g. 2024-05-01T09:30:00Z: %w", err)
			}

			na := apiclient.NewAppointment{
				PatientName:     patient,
				PatientEmail:    optional(cmd, "email"),
				PatientPhone:    optional(cmd, "phone"),
				AudiologistID:   audiologistID,
				AppointmentDate: when,
				DurationMinutes: duration,
				Notes:           optional(cmd, "notes"),
			}
			return a.visit(cmd, "/appointments/new", func(ctx context.Context) error {
				ap, err := a.client.CreateAppointment(ctx, na)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Booked appointment %s\n", ap.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("audiologist", "", "Audiologist ID")
	cmd.Flags().String("patient", "", "Patient name")
	cmd.Flags().String("date", "", "Start time, RFC 3339")
	cmd.Flags().Int("duration", 0, "Length in minutes (server default 60)")
	cmd.Flags().String("email", "", "Patient email")
	cmd.Flags().String("phone", "", "Patient phone")
	cmd.Flags().String("notes", "", "Notes")
	return cmd
}

func appointmentsUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change appointment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := apiclient.AppointmentPatch{
				PatientName:  optional(cmd, "patient"),
				PatientEmail: optional(cmd, "email"),
				PatientPhone: optional(cmd, "phone"),
				Notes:        optional(cmd, "notes"),
			}
			if cmd.Flags().Changed("date") {
				date, _ := cmd.Flags().GetString("date")
				when, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return fmt.Errorf("--date must be RFC 3339: %w", err)
				}
				patch.AppointmentDate = &when
			}
			if cmd.Flags().Changed("duration") {
				d, _ := cmd.Flags().GetInt("duration")
				patch.DurationMinutes = &d
			}

			return a.visit(cmd, "/appointments/"+args[0]+"/edit", func(ctx context.Context) error {
				ap, err := a.client.UpdateAppointment(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printAppointment(a.out, ap)
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient name")
	cmd.Flags().String("email", "", "Patient email")
	cmd.Flags().String("phone", "", "Patient phone")
	cmd.Flags().String("date", "", "Start time, RFC 3339")
	cmd.Flags().Int("duration", 0, "Length in minutes")
	cmd.Flags().String("notes", "", "Notes")
	return cmd
}

func transitionCmd(a *app, use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.visit(cmd, "/appointments/"+args[0], func(ctx context.Context) error {
				ap, err := a.client.TransitionAppointment(ctx, args[0], status)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Appointment %s is now %s\n", ap.ID, ap.Status)
				return nil
			})
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
