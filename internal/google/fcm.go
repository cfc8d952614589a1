// Package google delivers push notifications through Firebase Cloud Messaging
// using a service-account credential.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"candypic/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const tokenLifetime = time.Hour

// NewTokenSource signs a JWT assertion for the service account and exchanges
// it for an access token. Tokens are reused until they expire.
func NewTokenSource(ctx context.Context, credentialsJSON []byte) (oauth2.TokenSource, error) {
	conf, err := google.JWTConfigFromJSON(credentialsJSON, fcm.FirebaseMessagingScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	conf.Expires = tokenLifetime
	return conf.TokenSource(ctx), nil
}

// ProjectID reads project_id from a service-account file.
func ProjectID(credentialsJSON []byte) (string, error) {
	var creds struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(credentialsJSON, &creds); err != nil {
		return "", fmt.Errorf("unable to parse credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return "", errors.New("credentials have no project_id")
	}
	return creds.ProjectID, nil
}

type FCMSender struct {
	service   *fcm.Service
	projectID string
}

func NewFCMSender(ctx context.Context, projectID string, opts ...option.ClientOption) (*FCMSender, error) {
	if projectID == "" {
		return nil, errors.New("fcm project id is required")
	}
	srv, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create FCM service: %w", err)
	}
	return &FCMSender{service: srv, projectID: projectID}, nil
}

// NewFCMSenderFromFile builds a sender from a service-account file. An empty
// projectID is taken from the file.
func NewFCMSenderFromFile(ctx context.Context, credentialsFile, projectID string) (*FCMSender, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	if projectID == "" {
		if projectID, err = ProjectID(credentialsJSON); err != nil {
			return nil, err
		}
	}
	ts, err := NewTokenSource(ctx, credentialsJSON)
	if err != nil {
		return nil, err
	}
	return NewFCMSender(ctx, projectID, option.WithTokenSource(ts))
}

func (s *FCMSender) Send(ctx context.Context, token string, msg models.PushMessage) error {
	data := map[string]string{"click_action": msg.Link}
	if msg.BookingID != 0 {
		data["booking_id"] = strconv.FormatInt(msg.BookingID, 10)
	}

	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: token,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: data,
		},
	}
	if msg.Link != "" {
		req.Message.Webpush = &fcm.WebpushConfig{
			FcmOptions: &fcm.WebpushFcmOptions{Link: msg.Link},
		}
	}

	_, err := s.service.Projects.Messages.Send("projects/"+s.projectID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

// IsUnregistered reports whether FCM rejected the token as no longer valid.
func IsUnregistered(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound
}
