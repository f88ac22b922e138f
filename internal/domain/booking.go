package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus is the booking lifecycle state owned by the booking service.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

func (s BookingStatus) String() string { return string(s) }

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusPaid, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

func ParseBookingStatusFromString(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid booking status %q", ErrValidation, s)
	}
	return st, nil
}

// User is the identity/contact projection of a passenger or driver.
type User struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Ride is the read-only projection of a driver-posted trip.
type Ride struct {
	ID            string
	Source        string
	Destination   string
	DepartureDate time.Time
	VehicleNumber string
	VehicleType   string
	VehicleModel  string
	Driver        User
}

// VehicleInfo renders the vehicle the way reminders display it.
func (r Ride) VehicleInfo() string {
	number := strings.TrimSpace(r.VehicleNumber)
	vehicleType := strings.TrimSpace(r.VehicleType)
	switch {
	case number == "" && vehicleType == "":
		return ""
	case vehicleType == "":
		return number
	case number == "":
		return vehicleType
	}
	return fmt.Sprintf("%s (%s)", number, vehicleType)
}

// Booking is the read-only projection of a passenger's reservation, joined with
// its ride, driver and passenger. The reminder engine never mutates it.
type Booking struct {
	ID          string
	Status      BookingStatus
	SeatsBooked int
	BookingDate time.Time
	Ride        Ride
	Passenger   User
}
