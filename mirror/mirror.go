// Package mirror persists downloaded attachment bytes as publicly
// fetchable objects in Google Drive so the scrape result can carry
// durable links instead of ephemeral browser download paths.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var tracer = otel.Tracer("bbscraper/mirror")

// Upload is the public reference of a mirrored file. Name and MimeType
// are the values the storage service resolved, which may differ from the
// pre-upload guesses.
type Upload struct {
	Id       string
	Name     string
	MimeType string
	Link     string
}

// Mirror uploads a byte buffer and returns its public reference.
// Implementations must be safe for sequential reuse across assignments.
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (*Upload, error)
}

// DriveMirror mirrors files into Google Drive using a service account.
type DriveMirror struct {
	service  *drive.Service
	folderID string
}

// NewDriveMirror builds a Drive client from service-account JSON. It
// returns nil without error when no credentials are configured, which
// callers treat as the mirror capability being absent.
func NewDriveMirror(ctx context.Context, serviceAccountJSON, folderID string) (*DriveMirror, error) {
	if serviceAccountJSON == "" {
		return nil, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, []byte(serviceAccountJSON), drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse drive credentials: %w", err)
	}
	service, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize drive client: %w", err)
	}
	return &DriveMirror{service: service, folderID: folderID}, nil
}

// Upload creates the file (under the configured parent folder if any),
// grants read access to anyone, then re-fetches the canonical metadata
// since Drive may normalize name and content type.
func (m *DriveMirror) Upload(ctx context.Context, name string, data []byte, contentType string) (*Upload, error) {
	ctx, span := tracer.Start(ctx, "Upload")
	defer span.End()

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	meta := &drive.File{Name: name, MimeType: contentType}
	if m.folderID != "" {
		meta.Parents = []string{m.folderID}
	}
	created, err := m.service.Files.Create(meta).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create drive file: %w", err)
	}

	_, err = m.service.Permissions.Create(created.Id, &drive.Permission{
		Role: "reader",
		Type: "anyone",
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to grant read access: %w", err)
	}

	resolved, err := m.service.Files.Get(created.Id).
		Fields("name", "mimeType", "webViewLink", "webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drive file metadata: %w", err)
	}

	link := resolved.WebViewLink
	if link == "" {
		link = resolved.WebContentLink
	}
	slog.DebugContext(ctx, "mirrored attachment", slog.String("name", resolved.Name), slog.String("mime", resolved.MimeType))
	return &Upload{
		Id:       created.Id,
		Name:     resolved.Name,
		MimeType: resolved.MimeType,
		Link:     link,
	}, nil
}
