package iso8583

import (
	"github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/encoding"
	"github.com/moov-io/iso8583/field"
	"github.com/moov-io/iso8583/padding"
	"github.com/moov-io/iso8583/prefix"
)

// Spec is the ASCII message layout spoken by the authorization listener.
var Spec *iso8583.MessageSpec = &iso8583.MessageSpec{
	Name: "paygate ISO 8583 ASCII Specification",
	Fields: map[int]field.Field{
		0: field.NewString(&field.Spec{
			Length:      4,
			Description: "Message Type Indicator",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
		}),
		1: field.NewBitmap(&field.Spec{
			Length:      8,
			Description: "Bitmap",
			Enc:         encoding.BytesToASCIIHex,
			Pref:        prefix.Hex.Fixed,
		}),
		2: field.NewString(&field.Spec{
			Length:      19,
			Description: "Primary Account Number (PAN)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.LL,
		}),
		3: field.NewNumeric(&field.Spec{
			Length:      12,
			Description: "Amount (minor units)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
			Pad:         padding.Left('0'),
		}),
		4: field.NewString(&field.Spec{
			Length:      25,
			Description: "Transmission Date & Time (RFC 3339)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.LL,
		}),
		7: field.NewString(&field.Spec{
			Length:      3,
			Description: "Currency",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
		}),
		8: field.NewString(&field.Spec{
			Length:      4,
			Description: "Card Verification Value (CVV)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.LL,
		}),
		9: field.NewString(&field.Spec{
			Length:      4,
			Description: "Card Expiration Date (YYMM)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
		}),
		11: field.NewString(&field.Spec{
			Length:      6,
			Description: "Systems Trace Audit Number (STAN)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
			Pad:         padding.Left('0'),
		}),
		12: field.NewString(&field.Spec{
			Length:      99,
			Description: "Payer Name (UTF-8)",
			Enc:         encoding.Binary,
			Pref:        prefix.ASCII.LL,
		}),
		13: field.NewString(&field.Spec{
			Length:      13,
			Description: "Payer Tax ID",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.LL,
		}),
		38: field.NewString(&field.Spec{
			Length:      32,
			Description: "Authorization Code (invoice number)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.LL,
		}),
		39: field.NewString(&field.Spec{
			Length:      2,
			Description: "Approval Code",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
		}),
		44: field.NewString(&field.Spec{
			Length:      999,
			Description: "Additional Response Data (reason)",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.LLL,
		}),
	},
}
