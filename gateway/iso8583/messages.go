package iso8583

import "github.com/moov-io/iso8583/field"

const (
	MTIAuthorizationRequest  = "0100"
	MTIAuthorizationResponse = "0110"
)

// Approval codes carried in field 39.
const (
	ApprovalCodeApproved    = "00"
	ApprovalCodeDenied      = "05"
	ApprovalCodeFormatError = "30"
	ApprovalCodeSystemError = "96"
)

type AuthorizationRequest struct {
	PrimaryAccountNumber *field.String  `iso8583:"2"`
	Amount               *field.Numeric `iso8583:"3"`
	TransmissionDateTime *field.String  `iso8583:"4"`
	Currency             *field.String  `iso8583:"7"`
	CVV                  *field.String  `iso8583:"8"`
	ExpirationDate       *field.String  `iso8583:"9"`
	STAN                 *field.String  `iso8583:"11"`
	PayerName            *field.String  `iso8583:"12"`
	PayerTaxID           *field.String  `iso8583:"13"`
}

type AuthorizationResponse struct {
	STAN              *field.String `iso8583:"11"`
	AuthorizationCode *field.String `iso8583:"38"`
	ApprovalCode      *field.String `iso8583:"39"`
	Reason            *field.String `iso8583:"44"`
}

func stringValue(f *field.String) string {
	if f == nil {
		return ""
	}
	return f.Value()
}
