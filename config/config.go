package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drunlade/go-qrsz/qrxfer"
	"github.com/spf13/viper"
)

type Sender struct {
	BatchSize      int
	ChunkSize      int
	RotationMS     int
	CyclesPerBatch int
	MaxFileSize    int64
	QRSize         int
}

type Receiver struct {
	OutputDir string
	Overwrite bool
}

type Log struct {
	Path  string
	Level string
}

type Config struct {
	Sender   Sender
	Receiver Receiver
	Digest   string
	Log      Log
}

// Load reads the configuration file at path. With an empty path it looks
// for qrsz.{yaml,json,toml} in the working directory and in
// $HOME/.config/qrsz. A missing file is not an error; every key has a
// default and can be overridden by QRSZ_<SECTION>_<KEY> environment
// variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
	} else {
		v.SetConfigName("qrsz")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/qrsz")
	}

	v.SetEnvPrefix("QRSZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sender.batch_size", qrxfer.DefaultBatchSize)
	v.SetDefault("sender.chunk_size", qrxfer.DefaultChunkSize)
	v.SetDefault("sender.rotation_ms", qrxfer.DefaultRotationSpeed)
	v.SetDefault("sender.cycles_per_batch", 2)
	v.SetDefault("sender.max_file_size", qrxfer.DefaultMaxFileSize)
	v.SetDefault("sender.qr_size", 512)
	v.SetDefault("receiver.output_dir", ".")
	v.SetDefault("receiver.overwrite", false)
	v.SetDefault("transfer.digest", string(qrxfer.DigestSHA256))
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Sender: Sender{
			BatchSize:      v.GetInt("sender.batch_size"),
			ChunkSize:      v.GetInt("sender.chunk_size"),
			RotationMS:     v.GetInt("sender.rotation_ms"),
			CyclesPerBatch: v.GetInt("sender.cycles_per_batch"),
			MaxFileSize:    v.GetInt64("sender.max_file_size"),
			QRSize:         v.GetInt("sender.qr_size"),
		},
		Receiver: Receiver{
			OutputDir: v.GetString("receiver.output_dir"),
			Overwrite: v.GetBool("receiver.overwrite"),
		},
		Digest: v.GetString("transfer.digest"),
		Log: Log{
			Path:  v.GetString("log.path"),
			Level: v.GetString("log.level"),
		},
	}
	return cfg, nil
}

// Session converts the configuration into protocol session settings.
func (c *Config) Session() (*qrxfer.Config, error) {
	digest, err := qrxfer.ParseDigest(c.Digest)
	if err != nil {
		return nil, err
	}

	sc := qrxfer.DefaultConfig()
	sc.BatchSize = c.Sender.BatchSize
	sc.ChunkSize = c.Sender.ChunkSize
	sc.MaxFileSize = c.Sender.MaxFileSize
	sc.Digest = digest
	sc.RotationSpeed = time.Duration(c.Sender.RotationMS) * time.Millisecond
	sc.CyclesPerBatch = c.Sender.CyclesPerBatch

	sender := qrxfer.SenderConfig{
		BatchSize:     sc.BatchSize,
		ChunkSize:     sc.ChunkSize,
		RotationSpeed: sc.RotationSpeed,
		MaxFileSize:   sc.MaxFileSize,
		Digest:        sc.Digest,
	}
	if err := sender.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Logger builds the logger described by the Log section. Without a path it
// writes to stderr.
func (c *Config) Logger() (*qrxfer.ZerologLogger, error) {
	if c.Log.Path == "" {
		return qrxfer.NewZerologLogger(os.Stderr, c.Log.Level), nil
	}
	return qrxfer.NewFileLogger(c.Log.Path, c.Log.Level)
}
