package service

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
)

const (
	departureDateLayout = "Monday, 02 January 2006"
	departureTimeLayout = "15:04"
)

// reminderMessage is the short text stored on the record at schedule time.
func reminderMessage(kind domain.Kind, ride domain.Ride) string {
	msg := fmt.Sprintf("Your ride from %s to %s is scheduled %s. Please be ready!",
		ride.Source, ride.Destination, kind.TimePhrase())
	return truncateRunes(msg, domain.MaxReminderMessage)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

var reminderBodyTemplate = template.Must(template.New("reminder").Parse(
	`Hello {{.PassengerName}},

{{.Message}}

Ride details
  From:       {{.Source}}
  To:         {{.Destination}}
  Departure:  {{.DepartureDate}} at {{.DepartureTime}}
  Seats:      {{.SeatsBooked}}
{{- if .DriverName}}
  Driver:     {{.DriverName}}{{if .DriverPhone}} ({{.DriverPhone}}){{end}}
{{- end}}
{{- if .VehicleInfo}}
  Vehicle:    {{.VehicleInfo}}
{{- end}}

Have a safe trip!
`))

type reminderBodyData struct {
	PassengerName string
	Message       string
	Source        string
	Destination   string
	DepartureDate string
	DepartureTime string
	SeatsBooked   int
	DriverName    string
	DriverPhone   string
	VehicleInfo   string
}

// renderReminderBody builds the full notification body from the stored
// record and the current booking details.
func renderReminderBody(r *domain.Reminder, booking *domain.Booking) (string, error) {
	data := reminderBodyData{
		PassengerName: booking.Passenger.FullName(),
		Message:       r.Message,
		Source:        booking.Ride.Source,
		Destination:   booking.Ride.Destination,
		DepartureDate: booking.Ride.DepartureDate.Format(departureDateLayout),
		DepartureTime: booking.Ride.DepartureDate.Format(departureTimeLayout),
		SeatsBooked:   booking.SeatsBooked,
		DriverName:    booking.Ride.Driver.FullName(),
		DriverPhone:   booking.Ride.Driver.PhoneNumber,
		VehicleInfo:   booking.Ride.VehicleInfo(),
	}
	if data.PassengerName == "" {
		data.PassengerName = "there"
	}

	var buf bytes.Buffer
	if err := reminderBodyTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render reminder body: %w", err)
	}
	return buf.String(), nil
}
