// Package push contains the FCM HTTP v1 implementation of the core push
// Sender port.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/auth"
	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	corepush "github.com/devsmilefactory/moversfinder-sub010/core/push"
)

// DefaultBaseURL is the production FCM endpoint.
const DefaultBaseURL = "https://fcm.googleapis.com"

// DeviceTokenReader resolves a recipient's registered device token. An empty
// token with a nil error means the recipient has no device.
type DeviceTokenReader interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

// FCMSender delivers messages through the FCM HTTP v1 API, authenticating
// with bearer tokens from the auth manager.
type FCMSender struct {
	tokens    DeviceTokenReader
	source    auth.TokenSource
	hc        *http.Client
	baseURL   string
	projectID string
	log       logger.Logger
}

// NewFCMSender creates a sender against the production endpoint.
func NewFCMSender(tokens DeviceTokenReader, source auth.TokenSource, projectID string, log logger.Logger) (*FCMSender, error) {
	return NewFCMSenderWithClient(tokens, source, projectID, log, &http.Client{Timeout: 15 * time.Second}, DefaultBaseURL)
}

// NewFCMSenderWithClient is NewFCMSender with a caller-supplied HTTP client
// and base URL.
func NewFCMSenderWithClient(tokens DeviceTokenReader, source auth.TokenSource, projectID string, log logger.Logger, hc *http.Client, baseURL string) (*FCMSender, error) {
	if tokens == nil || source == nil || log == nil {
		return nil, fmt.Errorf("push: nil parameter provided to NewFCMSender")
	}
	if projectID == "" {
		return nil, fmt.Errorf("push: project id required")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FCMSender{
		tokens:    tokens,
		source:    source,
		hc:        hc,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		projectID: projectID,
		log:       log,
	}, nil
}

// v1 message envelope. Only the fields this service sets are modeled.
type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification fcmNotification   `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
		Android      fcmAndroid        `json:"android"`
		APNS         fcmAPNS           `json:"apns"`
	} `json:"message"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority     string `json:"priority"`
	Notification struct {
		Sound string `json:"sound,omitempty"`
	} `json:"notification"`
}

type fcmAPNS struct {
	Headers map[string]string `json:"headers"`
	Payload struct {
		APS struct {
			Sound string `json:"sound,omitempty"`
		} `json:"aps"`
	} `json:"payload"`
}

// Send implements corepush.Sender. Recipients without a device token are
// reported as skipped, not failed. A 401 from the gateway triggers one forced
// token refresh and a single retry.
func (s *FCMSender) Send(ctx context.Context, d corepush.Delivery) (corepush.Receipt, error) {
	deviceToken, err := s.tokens.DeviceToken(ctx, d.RecipientID)
	if err != nil {
		return corepush.Receipt{}, fmt.Errorf("push: device token lookup: %w", err)
	}
	if deviceToken == "" {
		return corepush.Receipt{State: corepush.StateSkippedNoToken}, nil
	}

	body, err := json.Marshal(buildMessage(d, deviceToken))
	if err != nil {
		return corepush.Receipt{}, fmt.Errorf("push: encode message: %w", err)
	}

	messageID, err := s.post(ctx, body, false)
	if err != nil {
		return corepush.Receipt{}, err
	}
	return corepush.Receipt{State: corepush.StateDelivered, MessageID: messageID}, nil
}

func (s *FCMSender) post(ctx context.Context, body []byte, retried bool) (string, error) {
	bearer, err := s.source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("push: acquire bearer token: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.baseURL, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("push: send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("push: read gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !retried {
		if refresher, ok := s.source.(auth.Refresher); ok {
			s.log.Warnf("gateway rejected bearer token, refreshing and retrying once")
			if _, err := refresher.ForceRefresh(ctx); err != nil {
				return "", fmt.Errorf("push: refresh bearer token: %w", err)
			}
			return s.post(ctx, body, true)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &corepush.DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("push: decode gateway response: %w", err)
	}
	return payload.Name, nil
}

// buildMessage maps a delivery to the v1 wire format. High and urgent
// priorities request immediate, audible delivery on both platforms; normal
// priority lets the device batch the push.
func buildMessage(d corepush.Delivery, deviceToken string) fcmMessage {
	var msg fcmMessage
	msg.Message.Token = deviceToken
	msg.Message.Notification = fcmNotification{Title: d.Title, Body: d.Body}

	data := make(map[string]string, len(d.Data)+5)
	for k, v := range d.Data {
		data[k] = v
	}
	data["type"] = d.Type
	data["category"] = d.Category
	data["notification_id"] = d.NotificationID
	data["priority"] = string(d.Priority)
	if d.ActionReference != "" {
		data["action_reference"] = d.ActionReference
	}
	if d.RideID != "" {
		data["ride_id"] = d.RideID
	}
	msg.Message.Data = data

	if d.Priority.Immediate() {
		msg.Message.Android.Priority = "HIGH"
		msg.Message.Android.Notification.Sound = "default"
		msg.Message.APNS.Headers = map[string]string{"apns-priority": "10"}
		msg.Message.APNS.Payload.APS.Sound = "default"
	} else {
		msg.Message.Android.Priority = "NORMAL"
		msg.Message.APNS.Headers = map[string]string{"apns-priority": "5"}
	}
	return msg
}
