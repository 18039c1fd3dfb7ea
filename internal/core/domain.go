package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "INCOME"
	Expense EntryType = "EXPENSE"
)

// MaxDescriptionLength bounds the free-text description of an entry.
const MaxDescriptionLength = 500

// maxAmountExponent bounds the decimal exponent accepted for an amount so
// rounding and formatting stay cheap.
const maxAmountExponent = 20

// MaxAmount is the exclusive upper bound for an amount; it matches the
// NUMERIC(14,2) column.
var MaxAmount = decimal.New(1, 12)

type (
	EntryType string

	// Entry is one income or expense record. Entries carry no identity of
	// their own: the ledger is a list that is always replaced as a whole.
	Entry struct {
		Type        EntryType
		Amount      decimal.Decimal
		Category    *string
		Date        Date
		Description string
	}

	// User is a registered account. PasswordHash never leaves the server.
	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"-"`
	}
)

var (
	ErrInvalidEntry  = errors.New("invalid entry")
	ErrUsernameTaken = errors.New("username already taken")
	ErrUserNotFound  = errors.New("user not found")
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// Normalize trims text fields, turns a blank category into no category and
// rounds the amount to cents.
func (e Entry) Normalize() Entry {
	e.Type = EntryType(strings.ToUpper(strings.TrimSpace(string(e.Type))))
	e.Description = strings.TrimSpace(e.Description)
	if e.Category != nil {
		c := strings.TrimSpace(*e.Category)
		if c == "" {
			e.Category = nil
		} else {
			e.Category = &c
		}
	}
	if amountExponentInRange(e.Amount) {
		e.Amount = e.Amount.Round(2)
	}
	return e
}

func amountExponentInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp <= maxAmountExponent && exp >= -maxAmountExponent
}

func checkAmountRange(d decimal.Decimal) error {
	if !amountExponentInRange(d) || d.Abs().Cmp(MaxAmount) >= 0 {
		return fmt.Errorf("%w: amount must be less than %s", ErrInvalidEntry, MaxAmount.String())
	}
	return nil
}

func (e Entry) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: type must be INCOME or EXPENSE", ErrInvalidEntry)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidEntry)
	}
	if err := checkAmountRange(e.Amount); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}
	if len(e.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidEntry, MaxDescriptionLength)
	}
	return nil
}

// CategoryName returns the category or the empty string.
func (e Entry) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// PrepareEntries normalizes and validates a full replacement list. The
// error names the offending position.
func PrepareEntries(entries []Entry) ([]Entry, error) {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		n := e.Normalize()
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

type entryJSON struct {
	Type        EntryType       `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Category    *string         `json:"category"`
	Date        Date            `json:"date"`
	Description string          `json:"description"`
}

// MarshalJSON emits the amount as a number with two decimals.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Type:        e.Type,
		Amount:      json.RawMessage(e.Amount.StringFixed(2)),
		Category:    e.Category,
		Date:        e.Date,
		Description: e.Description,
	})
}

// UnmarshalJSON accepts the amount as a JSON number or a numeric string.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var amount decimal.Decimal
	if len(w.Amount) > 0 && string(w.Amount) != "null" {
		if err := amount.UnmarshalJSON(w.Amount); err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidEntry, err)
		}
		if err := checkAmountRange(amount); err != nil {
			return err
		}
	}
	*e = Entry{
		Type:        w.Type,
		Amount:      amount,
		Category:    w.Category,
		Date:        w.Date,
		Description: w.Description,
	}
	return nil
}
