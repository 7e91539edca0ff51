package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"

	"github.com/gostones/mediavault/internal/upload"
)

const (
	StoreS3     = "s3"
	StoreMemory = "memory"
)

// Config is the full recognized configuration surface. Server and client
// binaries load the same structure and read the parts they need.
type Config struct {
	Addr     string
	APIURL   string
	LogLevel string

	Store          string
	Bucket         string
	Region         string
	Endpoint       string
	ForcePathStyle bool

	PublicBaseURL string
	ObjectPrefix  string

	MaxFileSize        int64
	MultipartThreshold int64
	MaxFilesPerBatch   int
	ChunkSize          int64

	// ServerMultipart gates every multipart endpoint on the server.
	// ClientMultipart gates chunked classification on the client.
	ServerMultipart bool
	ClientMultipart bool

	PutExpiry  time.Duration
	PartExpiry time.Duration
}

const (
	keyAddr               = "addr"
	keyAPIURL             = "api_url"
	keyLogLevel           = "log_level"
	keyStore              = "store"
	keyBucket             = "bucket"
	keyRegion             = "region"
	keyEndpoint           = "endpoint"
	keyForcePathStyle     = "force_path_style"
	keyPublicBaseURL      = "public_base_url"
	keyObjectPrefix       = "object_prefix"
	keyMaxFileSize        = "max_file_size"
	keyMultipartThreshold = "multipart_threshold"
	keyMaxFilesPerBatch   = "max_files_per_batch"
	keyChunkSize          = "chunk_size"
	keyServerMultipart    = "server_multipart"
	keyClientMultipart    = "client_multipart"
	keyPutExpiry          = "put_expiry"
	keyPartExpiry         = "part_expiry"
)

var envNames = map[string]string{
	keyAddr:               "MEDIAVAULT_ADDR",
	keyAPIURL:             "MEDIAVAULT_API_URL",
	keyLogLevel:           "LOG_LEVEL",
	keyStore:              "MEDIAVAULT_STORE",
	keyBucket:             "AWS_S3_BUCKET_NAME",
	keyRegion:             "AWS_REGION",
	keyEndpoint:           "AWS_S3_ENDPOINT",
	keyForcePathStyle:     "AWS_S3_FORCE_PATH_STYLE",
	keyPublicBaseURL:      "AWS_S3_PUBLIC_BASE_URL",
	keyObjectPrefix:       "AWS_S3_OBJECT_PREFIX",
	keyMaxFileSize:        "MEDIAVAULT_MAX_FILE_SIZE",
	keyMultipartThreshold: "MEDIAVAULT_MULTIPART_THRESHOLD",
	keyMaxFilesPerBatch:   "MEDIAVAULT_MAX_FILES_PER_BATCH",
	keyChunkSize:          "MEDIAVAULT_CHUNK_SIZE",
	keyServerMultipart:    "ENABLE_MULTIPART_UPLOAD",
	keyClientMultipart:    "MEDIAVAULT_ENABLE_MULTIPART",
	keyPutExpiry:          "MEDIAVAULT_PUT_EXPIRY",
	keyPartExpiry:         "MEDIAVAULT_PART_EXPIRY",
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(keyAddr, ":4000")
	v.SetDefault(keyAPIURL, "http://localhost:4000")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyStore, StoreS3)
	v.SetDefault(keyObjectPrefix, "media/")
	v.SetDefault(keyMaxFileSize, "200MiB")
	v.SetDefault(keyMultipartThreshold, "50MiB")
	v.SetDefault(keyMaxFilesPerBatch, 5)
	v.SetDefault(keyChunkSize, "10MiB")
	v.SetDefault(keyServerMultipart, false)
	v.SetDefault(keyClientMultipart, false)
	v.SetDefault(keyPutExpiry, 5*time.Minute)
	v.SetDefault(keyPartExpiry, 10*time.Minute)

	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
}

// Load reads the configuration from v. SetDefaults must have been called.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr:             v.GetString(keyAddr),
		APIURL:           v.GetString(keyAPIURL),
		LogLevel:         v.GetString(keyLogLevel),
		Store:            strings.ToLower(v.GetString(keyStore)),
		Bucket:           v.GetString(keyBucket),
		Region:           v.GetString(keyRegion),
		Endpoint:         v.GetString(keyEndpoint),
		ForcePathStyle:   v.GetBool(keyForcePathStyle),
		PublicBaseURL:    strings.TrimRight(v.GetString(keyPublicBaseURL), "/"),
		ObjectPrefix:     v.GetString(keyObjectPrefix),
		MaxFilesPerBatch: v.GetInt(keyMaxFilesPerBatch),
		ServerMultipart:  v.GetBool(keyServerMultipart),
		ClientMultipart:  v.GetBool(keyClientMultipart),
		PutExpiry:        v.GetDuration(keyPutExpiry),
		PartExpiry:       v.GetDuration(keyPartExpiry),
	}

	var err error
	if cfg.MaxFileSize, err = size(v, keyMaxFileSize); err != nil {
		return nil, err
	}
	if cfg.MultipartThreshold, err = size(v, keyMultipartThreshold); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = size(v, keyChunkSize); err != nil {
		return nil, err
	}

	return cfg, nil
}

// size accepts raw byte counts as well as human sizes such as 200MiB or 50m.
func size(v *viper.Viper, key string) (int64, error) {
	s := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envNames[key], err)
	}
	return n, nil
}

// Validate checks the limits shared by server and client.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.MultipartThreshold <= 0 {
		errs = append(errs, errors.New("multipart threshold must be positive"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.MaxFilesPerBatch <= 0 {
		errs = append(errs, errors.New("max files per batch must be positive"))
	}
	if c.ObjectPrefix == "" {
		errs = append(errs, errors.New("object prefix is required"))
	}
	return errors.Join(errs...)
}

// ValidateServer additionally checks what the signing server needs.
func (c *Config) ValidateServer() error {
	errs := []error{c.Validate()}
	switch c.Store {
	case StoreS3:
		if c.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s is required", envNames[keyBucket]))
		}
		if c.Region == "" {
			errs = append(errs, fmt.Errorf("%s is required", envNames[keyRegion]))
		}
		if c.PublicBaseURL == "" {
			errs = append(errs, fmt.Errorf("%s is required", envNames[keyPublicBaseURL]))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.PutExpiry <= 0 || c.PartExpiry <= 0 {
		errs = append(errs, errors.New("presign expiry must be positive"))
	}
	return errors.Join(errs...)
}

// Limits projects the client-side upload limits.
func (c *Config) Limits() upload.Limits {
	return upload.Limits{
		MaxFileSize:      c.MaxFileSize,
		ChunkThreshold:   c.MultipartThreshold,
		MaxFilesPerBatch: c.MaxFilesPerBatch,
		ChunkSize:        c.ChunkSize,
		ChunkingEnabled:  c.ClientMultipart,
	}
}
