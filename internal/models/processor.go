package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Processor billing cycles.
const (
	CycleMonthly      = "MONTHLY"
	CycleQuarterly    = "QUARTERLY"
	CycleSemiannually = "SEMIANNUALLY"
	CycleYearly       = "YEARLY"
)

const processorDateLayout = "2006-01-02"

// ProcessorDate is a calendar date as the processor encodes it ("2006-01-02").
// A zero value marshals as null.
type ProcessorDate struct {
	time.Time
}

func NewProcessorDate(t time.Time) ProcessorDate {
	y, m, d := t.Date()
	return ProcessorDate{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d *ProcessorDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// some endpoints return a full timestamp
	if len(s) > len(processorDateLayout) {
		s = s[:len(processorDateLayout)]
	}
	t, err := time.Parse(processorDateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d ProcessorDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(processorDateLayout))
}

// Ptr returns nil for the zero date.
func (d ProcessorDate) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

type ProcessorPayment struct {
	ID                string          `json:"id"`
	Customer          string          `json:"customer"`
	Subscription      string          `json:"subscription,omitempty"`
	Value             decimal.Decimal `json:"value"`
	NetValue          decimal.Decimal `json:"netValue"`
	Status            string          `json:"status"`
	BillingType       string          `json:"billingType"`
	DueDate           ProcessorDate   `json:"dueDate"`
	PaymentDate       ProcessorDate   `json:"paymentDate"`
	ConfirmedDate     ProcessorDate   `json:"confirmedDate"`
	ExternalReference string          `json:"externalReference,omitempty"`
	InvoiceURL        string          `json:"invoiceUrl,omitempty"`
	Description       string          `json:"description,omitempty"`
	Deleted           bool            `json:"deleted"`
}

type ProcessorSubscription struct {
	ID                string          `json:"id"`
	Customer          string          `json:"customer"`
	Value             decimal.Decimal `json:"value"`
	Cycle             string          `json:"cycle"`
	Status            string          `json:"status"`
	BillingType       string          `json:"billingType"`
	NextDueDate       ProcessorDate   `json:"nextDueDate"`
	ExternalReference string          `json:"externalReference,omitempty"`
	Description       string          `json:"description,omitempty"`
	Deleted           bool            `json:"deleted"`
}

type ProcessorCustomer struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

// SubscriptionUpdate carries a plan change to the processor.
type SubscriptionUpdate struct {
	Value                 float64       `json:"value"`
	Cycle                 string        `json:"cycle"`
	NextDueDate           ProcessorDate `json:"nextDueDate"`
	UpdatePendingPayments bool          `json:"updatePendingPayments"`
}

type NewSubscription struct {
	Customer          string        `json:"customer"`
	BillingType       string        `json:"billingType"`
	Value             float64       `json:"value"`
	NextDueDate       ProcessorDate `json:"nextDueDate"`
	Cycle             string        `json:"cycle"`
	Description       string        `json:"description,omitempty"`
	ExternalReference string        `json:"externalReference,omitempty"`
}

// WebhookEvent is the processor's push notification envelope.
type WebhookEvent struct {
	ID           string                 `json:"id"`
	Event        string                 `json:"event"`
	Payment      *ProcessorPayment      `json:"payment,omitempty"`
	Subscription *ProcessorSubscription `json:"subscription,omitempty"`
}
