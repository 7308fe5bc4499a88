package iso8583

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583-connection/server"
	"github.com/moov-io/iso8583/field"
	"github.com/moov-io/iso8583/network"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/authz"
	"github.com/jonanatree/paygate/internal/cardgen"
	"github.com/jonanatree/paygate/internal/expiry"
)

// Payer is the payment flow behind the listener.
type Payer interface {
	Pay(ctx context.Context, req models.ChargeRequest) (*models.PaymentResult, error)
}

// Server accepts 0100 authorization requests and answers with 0110.
type Server struct {
	Addr   string
	logger *slog.Logger
	payer  Payer
	server *server.Server
}

func NewServer(logger *slog.Logger, addr string, payer Payer) *Server {
	return &Server{
		Addr:   addr,
		logger: logger.With(slog.String("component", "iso8583")),
		payer:  payer,
	}
}

func (s *Server) Start() error {
	s.server = server.New(Spec, ReadMessageLength, WriteMessageLength, connection.InboundMessageHandler(s.handleMessage))

	if err := s.server.Start(s.Addr); err != nil {
		return fmt.Errorf("starting iso8583 server: %w", err)
	}
	s.Addr = s.server.Addr
	s.logger.Info("iso8583 server started", slog.String("addr", s.Addr))

	return nil
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.server.Close()
	return nil
}

func (s *Server) handleMessage(c *connection.Connection, message *iso8583.Message) {
	mti, err := message.GetMTI()
	if err != nil {
		s.logger.Error("getting MTI", "err", err)
		return
	}
	if mti != MTIAuthorizationRequest {
		s.logger.Error("unsupported MTI", slog.String("mti", mti))
		return
	}

	req := &AuthorizationRequest{}
	if err := message.Unmarshal(req); err != nil {
		s.logger.Error("unmarshaling request", "err", err)
		return
	}

	resp := s.authorize(req)

	response := iso8583.NewMessage(Spec)
	response.MTI(MTIAuthorizationResponse)
	if err := response.Marshal(resp); err != nil {
		s.logger.Error("marshaling response", "err", err)
		return
	}
	if err := c.Reply(response); err != nil {
		s.logger.Error("replying to message", "err", err)
	}
}

func (s *Server) authorize(req *AuthorizationRequest) *AuthorizationResponse {
	resp := &AuthorizationResponse{}
	if req.STAN != nil {
		resp.STAN = field.NewStringValue(req.STAN.Value())
	}

	charge, err := chargeFromRequest(req)
	if err != nil {
		resp.ApprovalCode = field.NewStringValue(ApprovalCodeFormatError)
		resp.Reason = field.NewStringValue(err.Error())
		return resp
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := s.payer.Pay(ctx, charge)
	switch {
	case errors.Is(err, authz.ErrStoreUnavailable):
		s.logger.Error("authorizing request", slog.String("card", cardgen.MaskPAN(charge.CardNumber)), slog.Any("err", err))
		resp.ApprovalCode = field.NewStringValue(ApprovalCodeSystemError)
	case err != nil:
		// anything else out of Pay is a malformed charge
		resp.ApprovalCode = field.NewStringValue(ApprovalCodeFormatError)
		resp.Reason = field.NewStringValue(err.Error())
	case result.Authorized:
		resp.ApprovalCode = field.NewStringValue(ApprovalCodeApproved)
		resp.AuthorizationCode = field.NewStringValue(result.InvoiceNumber)
	default:
		resp.ApprovalCode = field.NewStringValue(ApprovalCodeDenied)
		resp.Reason = field.NewStringValue(result.Reason)
	}
	return resp
}

func chargeFromRequest(req *AuthorizationRequest) (models.ChargeRequest, error) {
	var missing []string
	if req.PrimaryAccountNumber == nil {
		missing = append(missing, "2")
	}
	if req.Amount == nil {
		missing = append(missing, "3")
	}
	if req.ExpirationDate == nil {
		missing = append(missing, "9")
	}
	if len(missing) > 0 {
		return models.ChargeRequest{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	face, err := expiry.FaceFromYYMM(req.ExpirationDate.Value())
	if err != nil {
		return models.ChargeRequest{}, fmt.Errorf("field 9: %w", err)
	}

	return models.ChargeRequest{
		FullName:   stringValue(req.PayerName),
		TaxID:      stringValue(req.PayerTaxID),
		CardNumber: req.PrimaryAccountNumber.Value(),
		Expiry:     face,
		CVV:        stringValue(req.CVV),
		Amount:     decimal.New(int64(req.Amount.Value()), -2),
	}, nil
}

// ReadMessageLength reads the 2-byte binary length header.
func ReadMessageLength(r io.Reader) (int, error) {
	header := network.NewBinary2BytesHeader()
	n, err := header.ReadFrom(r)
	if err != nil {
		return n, err
	}

	return header.Length(), nil
}

// WriteMessageLength writes the 2-byte binary length header.
func WriteMessageLength(w io.Writer, length int) (int, error) {
	header := network.NewBinary2BytesHeader()
	header.SetLength(length)

	n, err := header.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("writing message header: %w", err)
	}

	return n, nil
}
