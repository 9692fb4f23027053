// Package telemetry records review-session metrics (gesture activity, store
// mutation outcomes, snapshot sizes) to InfluxDB. When the server is
// unreachable, points spill to a gzip-compressed line-protocol backup file
// so a session's telemetry survives network loss; points recorded before the
// first connection attempt are held in a backlog queue.
package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/framepoint/annotate/internal/queue"
)

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Logger       zerolog.Logger
	BackupPath   string

	pending *queue.Queue[*influxdb2_write.Point]
}

// NewManager creates a telemetry manager. Nothing connects until Connect.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Bucket:     viper.GetString("influx.bucket"),
		Logger:     log,
		BackupPath: backupPath,
		pending:    queue.Bounded[*influxdb2_write.Point](4096),
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server is unreachable. Points queued before the connection
// attempt are flushed to whichever sink came up.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		if err := m.setupOrganizationAndBucket(); err != nil {
			return err
		}
		m.createWriter()
		m.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	m.flushPending()
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	_, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket)
	if err != nil {
		m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	orgName := viper.GetString("influx.org")
	m.Writer = m.Client.WriteAPI(orgName, m.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// flushPending drains the pre-connection backlog into the active sink.
func (m *Manager) flushPending() {
	for _, point := range m.pending.Drain() {
		if err := m.writePoint(point); err != nil {
			m.Logger.Warn().Err(err).Msg("Dropping backlogged telemetry point")
		}
	}
}

func (m *Manager) writePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// WritePoint records a point, queueing it while no sink is available yet.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if !m.IsValid && m.BackupWriter == nil {
		m.pending.Push(point)
		return nil
	}
	return m.writePoint(point)
}

// PendingPoints reports the backlog size.
func (m *Manager) PendingPoints() int {
	return m.pending.Len()
}

// RecordGesture records one completed interaction gesture.
func (m *Manager) RecordGesture(videoID, gesture string, duration time.Duration) error {
	point := influxdb2_write.NewPointWithMeasurement("gesture").
		AddTag("video_id", videoID).
		AddTag("gesture", gesture).
		AddField("duration_ms", duration.Milliseconds()).
		SetTime(time.Now())
	return m.WritePoint(point)
}

// GestureHook adapts the manager to the interaction session's gesture
// callback. videoID resolves the active review at call time, so the same
// hook survives switching videos.
func (m *Manager) GestureHook(videoID func() string) func(kind string, duration time.Duration) {
	return func(kind string, duration time.Duration) {
		if err := m.RecordGesture(videoID(), kind, duration); err != nil {
			m.Logger.Warn().Err(err).Msg("Dropping gesture telemetry point")
		}
	}
}

// RecordMutation records the outcome of one store mutation.
func (m *Manager) RecordMutation(videoID, op string, count int, rejected bool) error {
	point := influxdb2_write.NewPointWithMeasurement("mutation").
		AddTag("video_id", videoID).
		AddTag("op", op).
		AddField("count", count).
		AddField("rejected", rejected).
		SetTime(time.Now())
	return m.WritePoint(point)
}

// RecordSnapshot records the size of an authoritative snapshot.
func (m *Manager) RecordSnapshot(videoID string, annotations, comments int) error {
	point := influxdb2_write.NewPointWithMeasurement("snapshot").
		AddTag("video_id", videoID).
		AddField("annotations", annotations).
		AddField("comments", comments).
		SetTime(time.Now())
	return m.WritePoint(point)
}

// Close flushes and shuts down whichever sink is active.
func (m *Manager) Close() error {
	if m.IsValid {
		m.Writer.Flush()
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		return m.BackupWriter.Close()
	}
	return nil
}
