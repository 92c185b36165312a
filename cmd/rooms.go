package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bilheteria-cli/model"
	"bilheteria-cli/service"
)

func (a *app) roomsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List every room and its screening",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(nil)
			if err != nil {
				return err
			}
			renderRooms(a.stdout, s.office.Rooms())
			return nil
		},
	}
}

func (a *app) filterCommand() *cobra.Command {
	var opts service.FilterOptions
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Find screenings by title and closing date",
		Example: `  bilheteria filter --title night
  bilheteria filter --from 01/06/2031 --to 2031-06-30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(nil)
			if err != nil {
				return err
			}
			rooms, err := s.office.Filter(opts)
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Fprintln(a.stdout, "No screenings match.")
				return nil
			}
			renderRooms(a.stdout, rooms)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "part of the film title, any case")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest closing date, inclusive")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest closing date, inclusive")
	return cmd
}

func renderRooms(w io.Writer, rooms []model.Room) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Room", "Film", "Genre", "Min. age", "Seats", "Closing"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 30},
		{Number: 3, WidthMax: 20},
	})
	t.Style().Options.SeparateRows = true

	for _, room := range rooms {
		if room.Empty() {
			t.AppendRow(table.Row{room.Number, "(empty)", "", "", "", ""})
			continue
		}
		s := room.Screening
		seats := any(s.Seats)
		if s.Seats == 0 {
			seats = "sold out"
		}
		t.AppendRow(table.Row{room.Number, s.Title, s.Genre, s.MinimumAge, seats, service.FormatDate(s.ClosingDate)})
	}
	t.Render()
}
