package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/database"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/version"
	"github.com/rs/zerolog"
)

const (
	archivePrefix     = "tickstock-backup-"
	archiveTimeLayout = "2006-01-02-150405"

	// Always keep the newest few remote backups regardless of age.
	minBackupsToKeep = 3

	backupTimeout = 10 * time.Minute
)

// BackupService snapshots the SQLite databases and error logs into a
// tar.gz archive, uploads it with a sha256 sidecar, and rotates old
// remote backups. It runs nightly at 02:30 when credentials are set.
type BackupService struct {
	r2            *R2Client
	databases     map[string]*database.DB
	dataDir       string
	logsDir       string
	retentionDays int
	log           zerolog.Logger
}

// BackupMetadata describes the contents of one backup archive.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
	LogFiles  []string           `json:"log_files,omitempty"`
}

// DatabaseMetadata describes a single database snapshot in the backup.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes a backup stored remotely.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

type archiveEntry struct {
	path string
	name string
}

// NewBackupService creates the nightly backup job.
func NewBackupService(
	r2 *R2Client,
	databases map[string]*database.DB,
	dataDir string,
	logsDir string,
	retentionDays int,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		r2:            r2,
		databases:     databases,
		dataDir:       dataDir,
		logsDir:       logsDir,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "nightly_backup").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (s *BackupService) Name() string {
	return "nightly_backup"
}

// Run creates and uploads one backup, then rotates old remote backups.
func (s *BackupService) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := s.CreateAndUpload(ctx); err != nil {
		return err
	}
	return s.RotateOldBackups(ctx)
}

// CreateAndUpload builds a backup archive in a staging directory and
// uploads the archive plus its checksum sidecar.
func (s *BackupService) CreateAndUpload(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	archivePath, err := s.buildArchive(stagingDir)
	if err != nil {
		return err
	}

	sidecarPath, err := s.writeChecksumSidecar(archivePath)
	if err != nil {
		return err
	}

	var archiveSize int64
	for _, p := range []string{archivePath, sidecarPath} {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if p == archivePath {
			archiveSize = info.Size()
		}

		file, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", p, err)
		}
		uploadErr := s.r2.Upload(ctx, filepath.Base(p), file, info.Size())
		file.Close()
		if uploadErr != nil {
			return uploadErr
		}
	}

	s.log.Info().
		Str("archive", filepath.Base(archivePath)).
		Int64("size_mb", archiveSize/1024/1024).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Backup uploaded")

	return nil
}

// buildArchive stages database snapshots, error logs and a metadata file,
// then packs them into a tar.gz under the staging directory.
func (s *BackupService) buildArchive(stagingDir string) (string, error) {
	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []archiveEntry

	for _, name := range names {
		snapshotPath := filepath.Join(stagingDir, name+".db")

		s.log.Debug().Str("database", name).Msg("Snapshotting database")

		if err := s.snapshotDatabase(s.databases[name], snapshotPath); err != nil {
			return "", err
		}

		info, err := os.Stat(snapshotPath)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", name, err)
		}

		checksum, err := s.calculateChecksum(snapshotPath)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s snapshot: %w", name, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  name + ".db",
			SizeBytes: info.Size(),
			Checksum:  "sha256:" + checksum,
		})
		entries = append(entries, archiveEntry{path: snapshotPath, name: name + ".db"})
	}

	logFiles, err := filepath.Glob(filepath.Join(s.logsDir, "*.jsonl"))
	if err == nil {
		sort.Strings(logFiles)
		for _, logPath := range logFiles {
			name := path.Join("logs", filepath.Base(logPath))
			entries = append(entries, archiveEntry{path: logPath, name: name})
			metadata.LogFiles = append(metadata.LogFiles, name)
		}
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := s.writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	entries = append(entries, archiveEntry{path: metadataPath, name: "backup-metadata.json"})

	archiveName := archivePrefix + time.Now().Format(archiveTimeLayout) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := s.createArchive(archivePath, entries); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	return archivePath, nil
}

// snapshotDatabase writes a consistent copy of the database. VACUUM INTO
// produces a compact snapshot without blocking writers.
func (s *BackupService) snapshotDatabase(db *database.DB, destPath string) error {
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		s.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint before snapshot failed")
	}

	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
	}
	return nil
}

// writeChecksumSidecar writes "<hex>  <filename>" next to the archive in
// the format sha256sum -c accepts.
func (s *BackupService) writeChecksumSidecar(archivePath string) (string, error) {
	checksum, err := s.calculateChecksum(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to checksum archive: %w", err)
	}

	sidecarPath := archivePath + ".sha256"
	line := fmt.Sprintf("%s  %s\n", checksum, filepath.Base(archivePath))
	if err := os.WriteFile(sidecarPath, []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum sidecar: %w", err)
	}
	return sidecarPath, nil
}

// ListBackups lists all backups stored remotely, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.r2.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		timestamp, ok := parseBackupTime(*obj.Key)
		if !ok {
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  *obj.Key,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes remote backups past the retention window,
// always keeping the newest minBackupsToKeep.
func (s *BackupService) RotateOldBackups(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	stale := backupsToDelete(backups, s.retentionDays, time.Now())
	if len(stale) == 0 {
		s.log.Debug().Int("count", len(backups)).Msg("No backups to rotate")
		return nil
	}

	deleted := 0
	for _, backup := range stale {
		if err := s.r2.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().
				Err(err).
				Str("filename", backup.Filename).
				Msg("Failed to delete old backup")
			continue
		}

		// Sidecar may be missing for very old backups.
		if err := s.r2.Delete(ctx, backup.Filename+".sha256"); err != nil {
			s.log.Debug().Err(err).Str("filename", backup.Filename).Msg("Failed to delete checksum sidecar")
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")

		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return nil
}

// backupsToDelete picks the deletable tail of a newest-first backup list.
// retentionDays == 0 means keep everything.
func backupsToDelete(backups []BackupInfo, retentionDays int, now time.Time) []BackupInfo {
	if retentionDays <= 0 || len(backups) <= minBackupsToKeep {
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)

	var stale []BackupInfo
	for i, backup := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if backup.Timestamp.Before(cutoff) {
			stale = append(stale, backup)
		}
	}
	return stale
}

// parseBackupTime extracts the timestamp from an archive filename like
// tickstock-backup-2026-01-08-143022.tar.gz.
func parseBackupTime(filename string) (time.Time, bool) {
	if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
		return time.Time{}, false
	}

	raw := strings.TrimPrefix(filename, archivePrefix)
	raw = strings.TrimSuffix(raw, ".tar.gz")

	timestamp, err := time.Parse(archiveTimeLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return timestamp, true
}

// calculateChecksum returns the hex SHA256 of a file.
func (s *BackupService) calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata to a JSON file.
func (s *BackupService) writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive packs the staged files into a tar.gz archive.
func (s *BackupService) createArchive(archivePath string, entries []archiveEntry) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, entry := range entries {
		if err := s.addFileToArchive(tarWriter, entry.path, entry.name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", entry.name, err)
		}
	}
	return nil
}

// addFileToArchive adds a single file to a tar archive.
func (s *BackupService) addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}
	return nil
}
