package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

func renderBookings(out io.Writer, bookings []Booking) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCLIENT\tDATE\tGUESTS\tTOTAL\tPACKAGES")
	for i := range bookings {
		b := &bookings[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
			b.ID, describe(b), b.Client.Name, dateOnly(b.BookingDate), b.Guests, b.TotalAmount, titles(b))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d booking(s)\n", len(bookings))
	return err
}

func renderBooking(out io.Writer, b *Booking) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", b.ID)
	fmt.Fprintf(tw, "status\t%s\n", describe(b))
	fmt.Fprintf(tw, "client\t%s <%s>\n", b.Client.Name, b.Client.Email)
	fmt.Fprintf(tw, "date\t%s\n", dateOnly(b.BookingDate))
	fmt.Fprintf(tw, "guests\t%d\n", b.Guests)
	fmt.Fprintf(tw, "packages\t%s\n", titles(b))
	fmt.Fprintf(tw, "total\t%.2f\n", b.TotalAmount)
	if b.SpecialRequests != "" {
		fmt.Fprintf(tw, "requests\t%s\n", b.SpecialRequests)
	}
	if b.AdminNotes != "" {
		fmt.Fprintf(tw, "notes\t%s\n", b.AdminNotes)
	}
	return tw.Flush()
}

func renderCounts(out io.Writer, counts map[string]int) error {
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%d\n", s, counts[s])
	}
	return tw.Flush()
}

func titles(b *Booking) string {
	names := make([]string, 0, len(b.Packages))
	for _, p := range b.Packages {
		names = append(names, p.Title)
	}
	return strings.Join(names, ", ")
}

func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
