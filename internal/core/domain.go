package core

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	None    Frequency = "none"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	Frequency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		Currency     string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Type      TransactionType
		Color     string
		Icon      string
		IsDefault bool
		CreatedAt time.Time
	}

	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Amount      Money
		Type        TransactionType
		Description string
		Date        Date
		Frequency   Frequency
		ParentID    int64 // recurring template this occurrence was generated from, 0 if none
		CreatedAt   time.Time
		UpdatedAt   time.Time

		// Joined from categories on reads.
		CategoryName  string
		CategoryIcon  string
		CategoryColor string
	}

	Budget struct {
		ID             int64
		UserID         int64
		CategoryID     int64
		Amount         Money
		Month          Date // first day of the month
		AlertThreshold int
		CreatedAt      time.Time
		UpdatedAt      time.Time

		CategoryName  string
		CategoryIcon  string
		CategoryColor string
	}
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrAuthFailure       = errors.New("invalid username or password")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidFrequency  = errors.New("invalid recurring frequency")
	ErrInvalidThreshold  = errors.New("alert threshold must be between 1 and 100")
	ErrNotFound          = errors.New("not found")
)

// MaxAmountCents caps amounts at ten digits, two of them fractional.
const MaxAmountCents int64 = 9_999_999_999

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseFrequency maps the empty string to None.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case "", None:
		return None, nil
	case Daily, Weekly, Monthly, Yearly:
		return f, nil
	default:
		return "", ErrInvalidFrequency
	}
}

// IsRecurring reports whether transactions with this frequency are templates.
func (f Frequency) IsRecurring() bool {
	return f != "" && f != None
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// Period returns the calendar month containing d.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" || len([]rune(name)) > 50 {
		return errors.New("category name must be 1-50 characters")
	}
	if strings.ContainsFunc(c.Name, unicode.IsControl) || strings.ContainsFunc(c.Icon, unicode.IsControl) {
		return errors.New("category name and icon must be a single line")
	}
	if err := c.Type.Validate(); err != nil {
		return err
	}
	if !IsHexColor(c.Color) {
		return errors.New("color must be a hex value like #6366F1")
	}
	return nil
}

// IsHexColor reports whether s looks like #RRGGBB.
func IsHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
