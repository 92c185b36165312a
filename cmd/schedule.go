package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bilheteria-cli/service"
)

func (a *app) scheduleCommand() *cobra.Command {
	var (
		room int
		in   service.ScreeningInput
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Put a film in a room",
		Long: `Put a film in a room, replacing whatever was scheduled there.
The closing date must be after today, as YYYY-MM-DD or DD/MM/YYYY.`,
		Example: `  bilheteria schedule --room 1 --title Nightfall --genre Drama --min-age 14 --closing 31/12/2031`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(nil)
			if err != nil {
				return err
			}
			if room, err = a.prompt.room("Room", room, s.office.Rooms()); err != nil {
				return err
			}
			if in.Title, err = a.prompt.text("Title", "title", in.Title); err != nil {
				return err
			}
			if in.Genre, err = a.prompt.text("Genre", "genre", in.Genre); err != nil {
				return err
			}
			if in.MinimumAge, err = a.prompt.minimumAge(in.MinimumAge, cmd.Flags().Changed("min-age")); err != nil {
				return err
			}
			if in.ClosingDate, err = a.prompt.text("Closing date (DD/MM/YYYY)", "closing", in.ClosingDate); err != nil {
				return err
			}

			screening, err := s.office.Schedule(room, in)
			if err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Scheduled %q in room %d until %s with %d seats.\n",
				screening.Title, room, service.FormatDate(screening.ClosingDate), screening.Seats)
			return nil
		},
	}
	cmd.Flags().IntVar(&room, "room", 0, "room number")
	cmd.Flags().StringVar(&in.Title, "title", "", "film title")
	cmd.Flags().StringVar(&in.Genre, "genre", "", "film genre")
	cmd.Flags().IntVar(&in.MinimumAge, "min-age", 0, "minimum age")
	cmd.Flags().StringVar(&in.ClosingDate, "closing", "", "last day the film is shown")
	return cmd
}

func (a *app) unscheduleCommand() *cobra.Command {
	var room int
	cmd := &cobra.Command{
		Use:   "unschedule",
		Short: "Remove the film from a room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(nil)
			if err != nil {
				return err
			}
			if room, err = a.prompt.room("Room", room, s.office.Rooms()); err != nil {
				return err
			}
			removed, err := s.office.Unschedule(room)
			if err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed %q from room %d.\n", removed.Title, room)
			return nil
		},
	}
	cmd.Flags().IntVar(&room, "room", 0, "room number")
	return cmd
}
