package pesapal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"expo-tickets/internal/status"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"
)

type (
	Config struct {
		BaseURL        string `json:"baseUrl" mapstructure:"base_url"`
		ConsumerKey    string `json:"consumerKey" mapstructure:"consumer_key"`
		ConsumerSecret string `json:"consumerSecret" mapstructure:"consumer_secret"`
		IPNID          string `json:"ipnId" mapstructure:"ipn_id"`

		PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
		PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
		PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
		PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
	}

	// Pesapal fronts the hosted-payment-page provider: order submission,
	// status queries and the push notification feed.
	Pesapal struct {
		pnSubKey    string
		pnSubSecret string
		pnUUID      string
		pnChannels  []string

		sub *subscribe

		// secret signs/verifies IPN push messages.
		secret string

		client *Client
	}
)

type (
	// payload is Pesapal's GetTransactionStatus wire shape.
	payload struct {
		PaymentMethod     string          `json:"payment_method"`
		Amount            decimal.Decimal `json:"amount"`
		CreatedDate       string          `json:"created_date"`
		ConfirmationCode  string          `json:"confirmation_code"`
		StatusDescription string          `json:"payment_status_description"`
		Description       string          `json:"description"`
		Message           string          `json:"message"`
		PaymentAccount    string          `json:"payment_account"`
		MerchantReference string          `json:"merchant_reference"`
		Currency          string          `json:"currency"`
		StatusCode        int             `json:"status_code"`
		Error             *struct {
			Code    string `json:"error_type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	// ipnMessage is the shape pushed on the notification channel.
	ipnMessage struct {
		OrderTrackingID   string `json:"order_tracking_id"`
		MerchantReference string `json:"merchant_reference"`
		NotificationType  string `json:"notification_type"`
		Signature         string `json:"signature"`
	}
)

// New returns a connected Pesapal instance. The returned value keeps a
// background token refresher and, when a notification channel is configured,
// a PubNub subscription for IPN pushes.
func New(ctx context.Context, cfg *Config) (*Pesapal, error) {
	client := newClient(ctx, &ClientConfig{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		IPNID:          cfg.IPNID,
	})

	// Authenticate and keep the bearer token fresh.
	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	go client.notifyAccessTokenExpired(ctx)

	p := &Pesapal{
		pnSubKey:    cfg.PNSubKey,
		pnSubSecret: cfg.PNSubSecret,
		pnUUID:      cfg.PNUUID,
		pnChannels:  []string{cfg.PNChannel},

		secret: cfg.ConsumerSecret,

		client: client,
	}

	if cfg.PNChannel == "" {
		// status-query-only mode, no push feed configured.
		return p, nil
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(p.pnUUID))
	pnCfg.SubscribeKey = p.pnSubKey
	pnCfg.SecretKey = p.pnSubSecret

	sub, err := p.newSubscription(ctx, pnCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to the IPN channel: %v", err)
	}

	sub.pn.AddListener(sub.lis)
	sub.pn.Subscribe().Channels(p.pnChannels).Execute()
	p.sub = sub

	return p, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener

	// mu guards ch, which is set after the processing goroutine starts.
	mu sync.Mutex
	ch chan *status.PaymentStatus

	parent *Pesapal
}

func (s *subscribe) setChannel(ch chan *status.PaymentStatus) {
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
}

func (s *subscribe) channel() chan *status.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (p *Pesapal) newSubscription(ctx context.Context, pnCfg *pubnub.Config) (*subscribe, error) {
	sub := &subscribe{
		pn:     pubnub.NewPubNub(pnCfg),
		lis:    pubnub.NewListener(),
		parent: p,
	}

	go sub.processSubscription(ctx)

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) error {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from pubnub")

			case pubnub.PNAccessDeniedCategory:
				log.Println("access denied connect to pubnub")

			case pubnub.PNTimeoutCategory:
				log.Println("timeout connect to pubnub")

			default:
				log.Println("pubnub status category:", st.Category)
			}

		case message := <-listener.Message:
			log.Println("IPN message received:", message.Message)

			raw, ok := message.Message.(string)
			if !ok {
				continue
			}

			var m ipnMessage
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&m); err != nil {
				log.Println(err)
				continue
			}

			if !VerifyIPNSignature(s.parent.secret, m.OrderTrackingID, m.MerchantReference, m.Signature) {
				log.Printf("IPN signature rejected for %s", m.MerchantReference)
				continue
			}

			// The push is a hint, never the authority: always re-query the
			// transaction status before handing it to the caller.
			record, err := s.parent.client.transactionStatus(ctx, m.OrderTrackingID)
			if err != nil {
				log.Println(err)
				continue
			}

			if ch := s.channel(); ch != nil {
				ch <- record
			}

		case <-ctx.Done():
			log.Println("close subscribe")
			return nil
		}
	}
}

// ToDomain converts the wire payload into the boundary status record.
func (p *payload) ToDomain(trackingID string) *status.PaymentStatus {
	record := &status.PaymentStatus{
		PaymentStatus:     p.StatusDescription,
		StatusCode:        p.StatusCode,
		Description:       p.Description,
		ConfirmationCode:  p.ConfirmationCode,
		MerchantReference: p.MerchantReference,
		OrderTrackingID:   trackingID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		PaymentMethod:     p.PaymentMethod,
		PaymentAccount:    p.PaymentAccount,
	}
	record.Success = record.Completed()
	return record
}

// SetNotificationChannel sets the channel receiving verified IPN records.
func (p *Pesapal) SetNotificationChannel(ch chan *status.PaymentStatus) {
	if p.sub != nil {
		p.sub.setChannel(ch)
	}
}

// SubmitOrder registers the order and returns (trackingID, redirectURL).
func (p *Pesapal) SubmitOrder(ctx context.Context, f *OrderForm) (string, string, error) {
	return p.client.submitOrder(ctx, f)
}

// TransactionStatus queries the provider-side view of a transaction.
func (p *Pesapal) TransactionStatus(ctx context.Context, trackingID string) (*status.PaymentStatus, error) {
	return p.client.transactionStatus(ctx, trackingID)
}

// Close unsubscribes from the IPN feed.
func (p *Pesapal) Close(ctx context.Context) error {
	if p.sub != nil {
		p.sub.pn.Unsubscribe().Channels(p.pnChannels).Execute()
	}
	return nil
}
