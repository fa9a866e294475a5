package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/mistika/checkout/internal/checkout/domain"
)

var (
	ErrInvalidNotification = errors.New("invalid notification")
)

type notificationBody struct {
	ID       ID     `json:"id"`
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Data     struct {
		ID ID `json:"id"`
	} `json:"data"`
}

// ParseNotification extracts topic and resource from a webhook delivery. Both the
// JSON body and the legacy IPN query parameters (topic/id, type/data.id) are honored.
//
// Notifications without a provider id are keyed per delivery by requestID (the
// x-request-id header), or a random id when that is empty. A key derived from
// the resource alone would mark every later status change of the same payment
// as a duplicate.
func ParseNotification(query url.Values, body []byte, requestID string) (domain.Notification, error) {
	var payload notificationBody
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return domain.Notification{}, errors.Join(ErrInvalidNotification, err)
		}
	}

	topic := firstNonEmpty(payload.Type, payload.Topic, query.Get("type"), query.Get("topic"))
	resourceID := firstNonEmpty(
		payload.Data.ID.String(),
		query.Get("data.id"),
		lastPathSegment(payload.Resource),
		query.Get("id"),
	)

	topic = NormalizeTopic(topic)
	if topic == "" || resourceID == "" {
		return domain.Notification{}, ErrInvalidNotification
	}

	action := strings.TrimSpace(payload.Action)
	eventID := payload.ID.String()
	if eventID == "" {
		delivery := strings.TrimSpace(requestID)
		if delivery == "" {
			delivery = uuid.NewString()
		}
		eventID = topic + ":" + resourceID + ":" + delivery
	}

	return domain.Notification{
		Provider:   Provider,
		EventID:    eventID,
		Topic:      topic,
		Action:     action,
		ResourceID: resourceID,
		RawPayload: body,
	}, nil
}

// NormalizeTopic folds the provider's topic spellings into the domain topics.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "chargeback"):
		return domain.TopicChargebacks
	case strings.Contains(t, "claim"):
		return domain.TopicClaim
	case t == "payment" || t == "payments":
		return domain.TopicPayment
	default:
		return t
	}
}

// VerifySignature checks the x-signature header ("ts=...,v1=...") against the
// manifest "id:{dataID};request-id:{requestID};ts:{ts};".
func VerifySignature(secret, header, requestID, dataID string) bool {
	if secret == "" || header == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	expected := SignManifest(secret, requestID, dataID, ts)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}

// SignManifest computes the v1 signature for the given delivery attributes.
func SignManifest(secret, requestID, dataID, ts string) string {
	var manifest strings.Builder
	if dataID != "" {
		manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		manifest.WriteString("request-id:" + requestID + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func lastPathSegment(resource string) string {
	resource = strings.TrimRight(strings.TrimSpace(resource), "/")
	if resource == "" {
		return ""
	}
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}
