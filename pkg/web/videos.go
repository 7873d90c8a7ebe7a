package web

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/signwatch/go-signwatch/internal/log"
)

// videoExtensions are the upload types the grabber can open.
var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

// VideoInfo describes one stored video file.
type VideoInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// handleUploadVideo stores a multipart upload under a generated name. The
// returned ID is the on-disk filename used by the list and delete routes, so
// client-chosen filenames never touch the filesystem.
func (s *Server) handleUploadVideo(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing file field",
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !videoExtensions[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported video format " + ext,
		})
	}

	if err := os.MkdirAll(s.opts.Uploads.Dir, 0o755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "upload dir unavailable",
		})
	}

	id := uuid.NewString() + ext
	dst := filepath.Join(s.opts.Uploads.Dir, id)
	if err := c.SaveFile(file, dst); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "store upload failed",
		})
	}

	log.Info("video uploaded", "id", id, "filename", file.Filename, "bytes", file.Size)

	return c.Status(fiber.StatusCreated).JSON(VideoInfo{
		ID:         id,
		Filename:   file.Filename,
		SizeBytes:  file.Size,
		UploadedAt: time.Now().UTC(),
	})
}

// handleListVideos enumerates stored uploads.
func (s *Server) handleListVideos(c *fiber.Ctx) error {
	entries, err := os.ReadDir(s.opts.Uploads.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(fiber.Map{"videos": []VideoInfo{}})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "upload dir unavailable",
		})
	}

	videos := make([]VideoInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		videos = append(videos, VideoInfo{
			ID:         entry.Name(),
			Filename:   entry.Name(),
			SizeBytes:  info.Size(),
			UploadedAt: info.ModTime().UTC(),
		})
	}

	return c.JSON(fiber.Map{"videos": videos})
}

// handleDeleteVideo removes a stored upload by ID.
func (s *Server) handleDeleteVideo(c *fiber.Ctx) error {
	id := filepath.Base(c.Params("id"))
	if id == "." || id == string(filepath.Separator) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid video id",
		})
	}

	path := filepath.Join(s.opts.Uploads.Dir, id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "video not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "delete failed",
		})
	}

	log.Info("video deleted", "id", id)
	return c.SendStatus(fiber.StatusNoContent)
}
