// Package drive talks to the SYNO.SynologyDrive APIs: folder listings,
// team folders, shared files, and office document export downloads.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/transport"
)

const (
	filesAPI       = "SYNO.SynologyDrive.Files"
	teamFoldersAPI = "SYNO.SynologyDrive.TeamFolder"

	// MyDrivePath is the listing root for the user's own drive.
	MyDrivePath = "/mydrive"

	// pageSize is the max items per listing request.
	pageSize = 1000
)

// Service provides Drive file enumeration and downloads.
type Service struct {
	transport transport.Transport
	logger    *events.Logger
}

// NewService creates a drive service.
func NewService(transport transport.Transport, logger *events.Logger) *Service {
	return &Service{
		transport: transport,
		logger:    logger.WithField("service", "drive"),
	}
}

// fileItem is the wire shape of one listing entry.
type fileItem struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name"`
	DisplayPath string `json:"display_path"`
	ContentType string `json:"content_type"`
	Encrypted   bool   `json:"encrypted"`
	Hash        string `json:"hash"`
	MTime       int64  `json:"modified_time"`
}

func (i *fileItem) toModel() models.RemoteFile {
	return models.RemoteFile{
		FileID:       i.FileID,
		Name:         i.Name,
		DisplayPath:  i.DisplayPath,
		ContentType:  i.ContentType,
		Encrypted:    i.Encrypted,
		Hash:         i.Hash,
		ModifiedTime: time.Unix(i.MTime, 0).UTC(),
	}
}

type listResponse struct {
	Items []fileItem `json:"items"`
	Total int        `json:"total"`
}

// ListFolder returns the direct children of a folder. The folder may
// be addressed by path ("/mydrive") or by file ID ("id:838526...").
func (s *Service) ListFolder(ctx context.Context, folder string) ([]models.RemoteFile, error) {
	var files []models.RemoteFile

	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("path", folder)
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("sort_by", "name")

		data, err := s.transport.CallAPI(ctx, transport.APIRequest{
			API:     filesAPI,
			Method:  "list",
			Version: 2,
			Params:  params,
		})
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folder, err)
		}

		var resp listResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse folder listing: %w", err)
		}

		for i := range resp.Items {
			files = append(files, resp.Items[i].toModel())
		}

		if len(resp.Items) < pageSize {
			break
		}
	}

	return files, nil
}

// Walk visits every file below root depth-first, calling fn for each
// non-directory entry. Directories are descended into by file ID.
func (s *Service) Walk(ctx context.Context, root string, fn func(models.RemoteFile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items, err := s.ListFolder(ctx, root)
	if err != nil {
		return err
	}

	for i := range items {
		item := items[i]
		if item.IsDir() {
			if err := s.Walk(ctx, "id:"+item.FileID, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// TeamFolders returns the team folder roots visible to the account.
func (s *Service) TeamFolders(ctx context.Context) ([]models.TeamFolder, error) {
	var folders []models.TeamFolder

	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(pageSize))

		data, err := s.transport.CallAPI(ctx, transport.APIRequest{
			API:     teamFoldersAPI,
			Method:  "list",
			Version: 1,
			Params:  params,
		})
		if err != nil {
			return nil, fmt.Errorf("list team folders: %w", err)
		}

		var resp struct {
			Items []models.TeamFolder `json:"items"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse team folder listing: %w", err)
		}

		folders = append(folders, resp.Items...)

		if len(resp.Items) < pageSize {
			break
		}
	}

	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})

	return folders, nil
}

// SharedWithMe returns files and folders other users shared with the
// account.
func (s *Service) SharedWithMe(ctx context.Context) ([]models.RemoteFile, error) {
	var files []models.RemoteFile

	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("filter", `{"shared_with_me":true}`)

		data, err := s.transport.CallAPI(ctx, transport.APIRequest{
			API:     filesAPI,
			Method:  "shared_with_me",
			Version: 2,
			Params:  params,
		})
		if err != nil {
			return nil, fmt.Errorf("list shared files: %w", err)
		}

		var resp listResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse shared listing: %w", err)
		}

		for i := range resp.Items {
			files = append(files, resp.Items[i].toModel())
		}

		if len(resp.Items) < pageSize {
			break
		}
	}

	return files, nil
}

// DownloadOffice downloads a Synology Office file converted to its
// Microsoft Office format ("xlsx", "docx" or "pptx").
func (s *Service) DownloadOffice(ctx context.Context, fileID, format string) ([]byte, error) {
	if format == "" {
		return nil, fmt.Errorf("download %s: no export format", fileID)
	}

	s.logger.WithFields(map[string]interface{}{
		"file_id": fileID,
		"format":  format,
	}).Debug("Downloading office file")

	params := url.Values{}
	params.Set("file_id", fileID)
	params.Set("export_format", format)

	data, err := s.transport.Download(ctx, transport.APIRequest{
		API:     filesAPI,
		Method:  "download",
		Version: 2,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}

	return data, nil
}
