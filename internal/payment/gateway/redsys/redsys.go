package redsys

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"furgocasa/internal/config"
	"furgocasa/internal/logger"
	"furgocasa/internal/models"
	"furgocasa/internal/payment/gateway"
)

const (
	testFormURL = "https://sis-t.redsys.es:25443/sis/realizarPago"
	prodFormURL = "https://sis.redsys.es/sis/realizarPago"

	signatureVersion = "HMAC_SHA256_V1"
	currencyEUR      = "978"
	txTypeCharge     = "0"
	txTypePreauth    = "1"
)

// merchantParams is the request payload the bank expects, base64
// encoded inside the redirect form.
type merchantParams struct {
	Amount          string `json:"DS_MERCHANT_AMOUNT"`
	Order           string `json:"DS_MERCHANT_ORDER"`
	MerchantCode    string `json:"DS_MERCHANT_MERCHANTCODE"`
	Currency        string `json:"DS_MERCHANT_CURRENCY"`
	TransactionType string `json:"DS_MERCHANT_TRANSACTIONTYPE"`
	Terminal        string `json:"DS_MERCHANT_TERMINAL"`
	MerchantURL     string `json:"DS_MERCHANT_MERCHANTURL"`
	URLOK           string `json:"DS_MERCHANT_URLOK"`
	URLKO           string `json:"DS_MERCHANT_URLKO"`
	Description     string `json:"DS_MERCHANT_PRODUCTDESCRIPTION,omitempty"`
}

// notificationParams is what the bank posts back after the shopper
// finishes (or abandons) the payment page.
type notificationParams struct {
	Date              string `json:"Ds_Date"`
	Hour              string `json:"Ds_Hour"`
	Amount            string `json:"Ds_Amount"`
	Currency          string `json:"Ds_Currency"`
	Order             string `json:"Ds_Order"`
	MerchantCode      string `json:"Ds_MerchantCode"`
	Terminal          string `json:"Ds_Terminal"`
	Response          string `json:"Ds_Response"`
	AuthorisationCode string `json:"Ds_AuthorisationCode"`
	TransactionType   string `json:"Ds_TransactionType"`
}

type Gateway struct {
	cfg config.RedsysConfig
	log *logger.Logger
}

func New(cfg config.RedsysConfig, log *logger.Logger) *Gateway {
	return &Gateway{cfg: cfg, log: log}
}

func (g *Gateway) Name() string {
	return models.GatewayRedsys
}

// Initiate builds the signed auto-submit form for the bank's hosted
// payment page. Amounts travel as integer cents.
func (g *Gateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*models.CheckoutSession, error) {
	txType := txTypeCharge
	if req.Kind == models.KindPreauth {
		txType = txTypePreauth
	}

	params := merchantParams{
		Amount:          strconv.FormatInt(int64(req.Amount*100+0.5), 10),
		Order:           req.OrderNumber,
		MerchantCode:    g.cfg.MerchantCode,
		Currency:        currencyEUR,
		TransactionType: txType,
		Terminal:        g.cfg.Terminal,
		MerchantURL:     g.cfg.NotificationURL,
		URLOK:           g.cfg.ReturnURLBase + "?result=ok&order=" + req.OrderNumber,
		URLKO:           g.cfg.ReturnURLBase + "?result=ko&order=" + req.OrderNumber,
		Description:     req.Description,
	}

	jsonParams, err := json.Marshal(params)
	if err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "could not prepare payment", Internal: err}
	}
	encoded := base64.StdEncoding.EncodeToString(jsonParams)

	signature, err := sign(g.cfg.SecretKey, req.OrderNumber, encoded)
	if err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "could not sign payment", Internal: err}
	}

	g.log.LogGateway(g.Name(), "INITIATE", fmt.Sprintf("Order %s amount %.2f EUR", req.OrderNumber, req.Amount))

	return &models.CheckoutSession{
		Gateway:     g.Name(),
		OrderNumber: req.OrderNumber,
		FormURL:     g.formURL(),
		FormFields: map[string]string{
			"Ds_SignatureVersion":   signatureVersion,
			"Ds_MerchantParameters": encoded,
			"Ds_Signature":          signature,
		},
	}, nil
}

// VerifyCallback authenticates a bank notification. The signature is
// recomputed from the posted parameters with the per-order key; a
// mismatch is the only hard error. Valid notifications map to an
// Event by response code: 0-99 authorized, 900 and 9915 cancelled,
// anything else failed.
func (g *Gateway) VerifyCallback(r *http.Request) (*gateway.Event, error) {
	encodedParams := r.FormValue("Ds_MerchantParameters")
	receivedSig := r.FormValue("Ds_Signature")
	if encodedParams == "" || receivedSig == "" {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "missing notification parameters"}
	}

	decoded, err := decodeB64(encodedParams)
	if err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "unreadable notification parameters", Internal: err}
	}

	var params notificationParams
	if err := json.Unmarshal(decoded, &params); err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "unreadable notification parameters", Internal: err}
	}

	expectedSig, err := sign(g.cfg.SecretKey, params.Order, encodedParams)
	if err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "could not verify notification", Internal: err}
	}
	if !signaturesEqual(expectedSig, receivedSig) {
		g.log.Warn("GATEWAY", fmt.Sprintf("Rejected redsys notification for order %s: bad signature", params.Order))
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "invalid notification signature"}
	}

	amountCents, _ := strconv.ParseInt(params.Amount, 10, 64)

	event := &gateway.Event{
		Gateway:           g.Name(),
		OrderNumber:       params.Order,
		Amount:            float64(amountCents) / 100,
		AuthorizationCode: strings.TrimSpace(params.AuthorisationCode),
		ResponseCode:      params.Response,
	}

	code, err := strconv.Atoi(params.Response)
	switch {
	case err != nil:
		event.Type = gateway.EventFailed
	case code >= 0 && code <= 99:
		event.Type = gateway.EventAuthorized
	case code == 900 || code == 9915:
		event.Type = gateway.EventCancelled
	default:
		event.Type = gateway.EventFailed
	}

	g.log.LogGateway(g.Name(), "NOTIFICATION", fmt.Sprintf("Order %s response %s -> %s", params.Order, params.Response, event.Type))

	return event, nil
}

func (g *Gateway) formURL() string {
	if g.cfg.Environment == "production" {
		return prodFormURL
	}
	return testFormURL
}

func decodeB64(s string) ([]byte, error) {
	s = normalizeB64(s)
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(s)
}
