package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/polarsmith/internal/eventlog"
	"github.com/roach88/polarsmith/internal/session"
	"github.com/roach88/polarsmith/internal/storage"
)

const backupPrefix = "backups/"

// backupTimestampLayout shapes the timestamp embedded in backup keys.
const backupTimestampLayout = "20060102_150405"

// backupArchive is the persisted shape of one backup object.
type backupArchive struct {
	SessionID       string            `json:"session_id"`
	BackupTimestamp string            `json:"backup_timestamp"`
	Files           map[string]string `json:"files"`
}

// CreateBackup archives every file under the session's prefix plus its
// event stream into one timestamped object. It never mutates the
// source.
func (s *Service) CreateBackup(ctx context.Context, sessionID string) error {
	timestamp := s.now().UTC().Format(backupTimestampLayout)
	key := fmt.Sprintf("%s%s_%s.json", backupPrefix, sessionID, timestamp)

	files := make(map[string]string)
	infos, err := s.store.List(ctx, session.Prefix(sessionID))
	if err != nil {
		return fmt.Errorf("backup session %s: list files: %w", sessionID, err)
	}
	for _, info := range infos {
		obj, err := s.store.Get(ctx, info.Key)
		if err != nil {
			s.logger.Warn("skipping unreadable file in backup", "key", info.Key, "error", err)
			continue
		}
		files[info.Key] = obj.Content
	}

	streamKey := eventlog.StreamKey(sessionID)
	if obj, err := s.store.Get(ctx, streamKey); err == nil {
		files[streamKey] = obj.Content
	} else if !storage.IsNotFound(err) {
		return fmt.Errorf("backup session %s: events: %w", sessionID, err)
	}

	archive := backupArchive{
		SessionID:       sessionID,
		BackupTimestamp: timestamp,
		Files:           files,
	}
	content, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return fmt.Errorf("backup session %s: encode: %w", sessionID, err)
	}
	metadata := map[string]string{
		"session_id":  sessionID,
		"backup_type": "full",
		"file_count":  strconv.Itoa(len(files)),
	}
	if err := s.store.Put(ctx, key, string(content), "application/json", metadata); err != nil {
		return fmt.Errorf("backup session %s: %w", sessionID, err)
	}

	s.logger.Info("backup created", "session_id", sessionID, "key", key, "files", len(files))
	return nil
}

// ListBackups returns a session's backups, newest first.
func (s *Service) ListBackups(ctx context.Context, sessionID string) ([]BackupInfo, error) {
	prefix := backupPrefix + sessionID + "_"
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups for session %s: %w", sessionID, err)
	}

	backups := make([]BackupInfo, 0, len(infos))
	for _, info := range infos {
		timestamp := strings.TrimSuffix(strings.TrimPrefix(info.Key, prefix), ".json")
		backups = append(backups, BackupInfo{
			Key:       info.Key,
			Timestamp: timestamp,
			Size:      info.Size,
			Created:   info.LastModified,
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Timestamp > backups[j].Timestamp
		}
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// RestoreFromBackup writes every archived file back to its original
// key, overwriting current content. An empty timestamp restores the
// most recent backup.
func (s *Service) RestoreFromBackup(ctx context.Context, sessionID, timestamp string) error {
	key := ""
	if timestamp != "" {
		key = fmt.Sprintf("%s%s_%s.json", backupPrefix, sessionID, timestamp)
	} else {
		backups, err := s.ListBackups(ctx, sessionID)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			return fmt.Errorf("restore session %s: no backups found", sessionID)
		}
		key = backups[0].Key
	}

	obj, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("restore session %s: %w", sessionID, err)
	}
	var archive backupArchive
	if err := json.Unmarshal([]byte(obj.Content), &archive); err != nil {
		return fmt.Errorf("restore session %s: parse backup %s: %w", sessionID, key, err)
	}

	for fileKey, content := range archive.Files {
		if err := s.store.Put(ctx, fileKey, content, "application/octet-stream", nil); err != nil {
			return fmt.Errorf("restore session %s: write %s: %w", sessionID, fileKey, err)
		}
	}

	s.logger.Info("session restored from backup",
		"session_id", sessionID, "backup", key, "files", len(archive.Files))
	return nil
}
