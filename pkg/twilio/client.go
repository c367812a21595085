package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// ErrMissingCredentials is returned when a profile has no account sid or auth token.
var ErrMissingCredentials = errors.New("twilio credentials not provided")

// AvailableNumber is a purchasable local number.
type AvailableNumber struct {
	PhoneNumber  string `json:"phoneNumber"`
	FriendlyName string `json:"friendlyName"`
	Locality     string `json:"locality"`
	Region       string `json:"region"`
}

// PurchasedNumber is a number owned by the account.
type PurchasedNumber struct {
	Sid         string `json:"sid"`
	PhoneNumber string `json:"phoneNumber"`
}

// Client talks to the Twilio REST API. Every call names the credential profile it acts with;
// rest clients are built once per account sid and reused.
type Client struct {
	defaultProfile config.TelephonyProfile
	countryCode    string

	mutex   sync.Mutex
	clients map[string]*twilio.RestClient
}

// NewClient creates a telephony client. defaultProfile is used for sub-account creation.
func NewClient(cfg config.TelephonyConfig) *Client {
	countryCode := cfg.CountryCode
	if countryCode == "" {
		countryCode = "US"
	}
	if cfg.Default.IsZero() {
		logger.Base().Warn("Twilio default credentials not provided, provisioning will fail until a profile is supplied")
	}
	return &Client{
		defaultProfile: cfg.Default,
		countryCode:    countryCode,
		clients:        make(map[string]*twilio.RestClient),
	}
}

// DefaultProfile returns the shared credential profile loaded from configuration.
func (c *Client) DefaultProfile() config.TelephonyProfile {
	return c.defaultProfile
}

func (c *Client) restClient(profile config.TelephonyProfile) (*twilio.RestClient, error) {
	if profile.IsZero() {
		return nil, ErrMissingCredentials
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := profile.AccountSID + ":" + profile.AuthToken
	if rc, ok := c.clients[key]; ok {
		return rc, nil
	}
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: profile.AccountSID,
		Password: profile.AuthToken,
	})
	c.clients[key] = rc
	return rc, nil
}

// SearchNumbers lists voice-capable local numbers in an area code.
func (c *Client) SearchNumbers(ctx context.Context, profile config.TelephonyProfile, areaCode string, limit int) ([]AvailableNumber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := c.restClient(profile)
	if err != nil {
		return nil, err
	}

	code, err := strconv.Atoi(areaCode)
	if err != nil {
		return nil, fmt.Errorf("invalid area code %q: %w", areaCode, err)
	}

	params := &api.ListAvailablePhoneNumberLocalParams{}
	params.SetPathAccountSid(profile.AccountSID)
	params.SetAreaCode(code)
	params.SetVoiceEnabled(true)
	params.SetLimit(limit)

	resp, err := rc.Api.ListAvailablePhoneNumberLocal(c.countryCode, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search numbers in area code %s: %w", areaCode, err)
	}

	numbers := make([]AvailableNumber, 0, len(resp))
	for _, n := range resp {
		numbers = append(numbers, AvailableNumber{
			PhoneNumber:  deref(n.PhoneNumber),
			FriendlyName: deref(n.FriendlyName),
			Locality:     deref(n.Locality),
			Region:       deref(n.Region),
		})
	}
	return numbers, nil
}

// PurchaseNumber buys a specific number and labels it with friendlyName.
func (c *Client) PurchaseNumber(ctx context.Context, profile config.TelephonyProfile, phoneNumber, friendlyName string) (*PurchasedNumber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := c.restClient(profile)
	if err != nil {
		return nil, err
	}

	params := &api.CreateIncomingPhoneNumberParams{}
	params.SetPathAccountSid(profile.AccountSID)
	params.SetPhoneNumber(phoneNumber)
	params.SetFriendlyName(friendlyName)

	resp, err := rc.Api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return nil, fmt.Errorf("failed to purchase number %s: %w", phoneNumber, err)
	}

	purchased := &PurchasedNumber{Sid: deref(resp.Sid), PhoneNumber: deref(resp.PhoneNumber)}
	if purchased.Sid == "" || purchased.PhoneNumber == "" {
		return nil, fmt.Errorf("purchase of %s returned no sid or number", phoneNumber)
	}

	logger.Info(ctx, "Purchased phone number",
		zap.String("phone_number", purchased.PhoneNumber),
		zap.String("number_sid", purchased.Sid))
	return purchased, nil
}

// ReleaseNumber releases an owned number. A number that no longer exists counts as released.
func (c *Client) ReleaseNumber(ctx context.Context, profile config.TelephonyProfile, numberSid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rc, err := c.restClient(profile)
	if err != nil {
		return err
	}

	params := &api.DeleteIncomingPhoneNumberParams{}
	params.SetPathAccountSid(profile.AccountSID)

	if err := rc.Api.DeleteIncomingPhoneNumber(numberSid, params); err != nil {
		if IsNotFound(err) {
			logger.Warn(ctx, "Phone number already released", zap.String("number_sid", numberSid))
			return nil
		}
		return fmt.Errorf("failed to release number %s: %w", numberSid, err)
	}
	return nil
}

// CreateSubAccount creates a sub-account under the default profile and returns its credentials.
func (c *Client) CreateSubAccount(ctx context.Context, friendlyName string) (config.TelephonyProfile, error) {
	if err := ctx.Err(); err != nil {
		return config.TelephonyProfile{}, err
	}
	rc, err := c.restClient(c.defaultProfile)
	if err != nil {
		return config.TelephonyProfile{}, err
	}

	params := &api.CreateAccountParams{}
	params.SetFriendlyName(friendlyName)

	resp, err := rc.Api.CreateAccount(params)
	if err != nil {
		return config.TelephonyProfile{}, fmt.Errorf("failed to create sub-account: %w", err)
	}

	profile := config.TelephonyProfile{
		Name:       friendlyName,
		AccountSID: deref(resp.Sid),
		AuthToken:  deref(resp.AuthToken),
	}
	if profile.IsZero() {
		return config.TelephonyProfile{}, errors.New("sub-account creation returned no credentials")
	}
	return profile, nil
}

// IsNotFound reports whether err is a Twilio 404.
func IsNotFound(err error) bool {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Status == http.StatusNotFound
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
