package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	Income  Type = "income"
	Expense Type = "expense"
)

const dateLayout = "2006-01-02"

type (
	// Identity is the opaque authenticated caller reference. The ledger only
	// uses it as a scoping key.
	Identity string

	Type string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Kind is the transaction type together with the data that type carries.
	// Only IncomeKind and ExpenseKind construct one, so an expense without a
	// category cannot exist.
	Kind struct {
		typ      Type
		category string
	}

	// EntryInput is the raw, untrusted shape of a ledger write.
	EntryInput struct {
		Description string
		Amount      string
		Type        string
		Category    string
		Date        string
	}

	// Entry is a validated ledger write with its amount already rounded.
	Entry struct {
		Description string
		Amount      Money
		Kind        Kind
		Date        Date
	}

	Transaction struct {
		ID          string
		UserID      Identity
		Description string
		Amount      Money
		Kind        Kind
		Date        Date
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

// IncomeKind returns the income variant. Income carries no category.
func IncomeKind() Kind {
	return Kind{typ: Income}
}

// ExpenseKind returns the expense variant for category.
func ExpenseKind(category string) (Kind, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Kind{}, ErrMissingCategory
	}
	return Kind{typ: Expense, category: category}, nil
}

// ParseKind builds a Kind from wire values. A category sent with an income is
// accepted and dropped.
func ParseKind(typ, category string) (Kind, error) {
	switch Type(strings.ToLower(strings.TrimSpace(typ))) {
	case Income:
		return IncomeKind(), nil
	case Expense:
		return ExpenseKind(category)
	default:
		return Kind{}, ErrInvalidType
	}
}

func (k Kind) Type() Type       { return k.typ }
func (k Kind) Category() string { return k.category }
func (k Kind) IsIncome() bool   { return k.typ == Income }
func (k Kind) IsExpense() bool  { return k.typ == Expense }

func (k Kind) Validate() error {
	switch k.typ {
	case Income:
		return nil
	case Expense:
		if k.category == "" {
			return ErrMissingCategory
		}
		return nil
	default:
		return ErrInvalidType
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf keeps only the calendar day of t, as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. Time of day is dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the ISO calendar form, e.g. 2024-01-31.
func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalize validates raw input and produces an Entry. Amounts are rounded
// here, before anything is persisted.
func (in EntryInput) Normalize() (Entry, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Entry{}, err
	}
	kind, err := ParseKind(in.Type, in.Category)
	if err != nil {
		return Entry{}, err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		Kind:        kind,
		Date:        date,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}

// Apply replaces the ledger-owned fields of t with e.
func (t Transaction) Apply(e Entry) Transaction {
	t.Description = e.Description
	t.Amount = e.Amount
	t.Kind = e.Kind
	t.Date = e.Date
	return t
}

type transactionJSON struct {
	ID          string    `json:"id"`
	UserID      Identity  `json:"userId"`
	Description string    `json:"description"`
	Amount      Money     `json:"amount"`
	Type        Type      `json:"type"`
	Category    string    `json:"category"`
	Date        Date      `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:          t.ID,
		UserID:      t.UserID,
		Description: t.Description,
		Amount:      t.Amount,
		Type:        t.Kind.Type(),
		Category:    t.Kind.Category(),
		Date:        t.Date,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	})
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	var raw struct {
		transactionJSON
		Amount json.Number `json:"amount"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	amount, err := ParseAmount(raw.Amount.String())
	if err != nil {
		return err
	}
	kind, err := ParseKind(string(raw.Type), raw.Category)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:          raw.ID,
		UserID:      raw.UserID,
		Description: raw.Description,
		Amount:      amount,
		Kind:        kind,
		Date:        raw.Date,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}
