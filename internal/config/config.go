package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/logger"
)

// Recognition engines
const (
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineOpenAI     = "openai"
	EngineTesseract  = "tesseract"
)

// Archive and ledger backends
const (
	ArchiveDrive    = "drive"
	ArchiveGCS      = "gcs"
	LedgerSheets    = "sheets"
	LedgerFirestore = "firestore"
	LedgerNone      = "none"
)

type Config struct {
	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Text recognition
	OCREngine         string
	OpenAIAPIKey      string
	OpenAIModel       string
	TesseractPath     string
	TesseractLanguage string

	// Archive repository
	ArchiveBackend      string
	DriveParentFolderID string
	GCSArchiveBucket    string
	GCSArchivePrefix    string

	// Ledger
	LedgerBackend             string
	LedgerSpreadsheetName     string
	GoogleSheetURL            string
	LedgerWriteHeaders        bool
	LedgerFirestoreCollection string

	// Local staging of artifacts before upload
	StagingDir        string
	DeleteMaxAttempts int
	DeleteRetryDelay  time.Duration

	// Review web surface
	HTTPAddr       string
	MaxUploadBytes int64

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		GoogleCloudProject:        getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:       getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:     getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OCREngine:                 strings.ToLower(getEnv("OCR_ENGINE", EngineVision)),
		OpenAIAPIKey:              getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TesseractPath:             getEnv("TESSERACT_PATH", "tesseract"),
		TesseractLanguage:         getEnv("TESSERACT_LANGUAGE", "eng"),
		ArchiveBackend:            strings.ToLower(getEnv("ARCHIVE_BACKEND", ArchiveDrive)),
		DriveParentFolderID:       getEnv("DRIVE_PARENT_FOLDER_ID", ""),
		GCSArchiveBucket:          getEnv("GCS_ARCHIVE_BUCKET", ""),
		GCSArchivePrefix:          getEnv("GCS_ARCHIVE_PREFIX", ""),
		LedgerBackend:             strings.ToLower(getEnv("LEDGER_BACKEND", LedgerSheets)),
		LedgerSpreadsheetName:     getEnv("LEDGER_SPREADSHEET_NAME", "OCR_Extraction_Records"),
		GoogleSheetURL:            getEnv("GOOGLE_SHEET_URL", ""),
		LedgerFirestoreCollection: getEnv("LEDGER_FIRESTORE_COLLECTION", "ocr_extraction_records"),
		StagingDir:                getEnv("STAGING_DIR", "."),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8501"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:             getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                 getEnv("LOG_OUTPUT", "stderr"),
	}

	retry := archival.DefaultRetryPolicy()

	var err error
	if config.LedgerWriteHeaders, err = getEnvBool("LEDGER_WRITE_HEADERS", false); err != nil {
		return nil, err
	}
	if config.DeleteMaxAttempts, err = getEnvInt("DELETE_MAX_ATTEMPTS", retry.MaxAttempts); err != nil {
		return nil, err
	}
	if config.DeleteRetryDelay, err = getEnvDuration("DELETE_RETRY_DELAY", retry.Delay); err != nil {
		return nil, err
	}
	maxUpload, err := getEnvInt("MAX_UPLOAD_BYTES", 20*1024*1024)
	if err != nil {
		return nil, err
	}
	config.MaxUploadBytes = int64(maxUpload)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DeleteMaxAttempts < 1 {
		return fmt.Errorf("DELETE_MAX_ATTEMPTS must be at least 1")
	}
	if c.DeleteRetryDelay < 0 {
		return fmt.Errorf("DELETE_RETRY_DELAY must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.StagingDir == "" {
		return fmt.Errorf("STAGING_DIR must not be empty")
	}
	return nil
}

// ValidateRecognizer checks the settings the selected OCR engine needs.
func (c *Config) ValidateRecognizer() error {
	switch c.OCREngine {
	case EngineVision:
		return nil
	case EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai engine")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai engine")
		}
	case EngineOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai engine")
		}
	case EngineTesseract:
		if c.TesseractPath == "" {
			return fmt.Errorf("TESSERACT_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q", c.OCREngine)
	}
	return nil
}

// ValidateArchive checks the settings the selected archive backend needs.
func (c *Config) ValidateArchive() error {
	switch c.ArchiveBackend {
	case ArchiveDrive:
		if c.DriveParentFolderID == "" {
			return fmt.Errorf("DRIVE_PARENT_FOLDER_ID is required for the drive archive")
		}
	case ArchiveGCS:
		if c.GCSArchiveBucket == "" {
			return fmt.Errorf("GCS_ARCHIVE_BUCKET is required for the gcs archive")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_BACKEND %q", c.ArchiveBackend)
	}
	return nil
}

// ValidateLedger checks the settings the selected ledger backend needs.
func (c *Config) ValidateLedger() error {
	switch c.LedgerBackend {
	case LedgerNone:
		return nil
	case LedgerSheets:
		if c.GoogleSheetURL == "" && c.LedgerSpreadsheetName == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL or LEDGER_SPREADSHEET_NAME is required for the sheets ledger")
		}
	case LedgerFirestore:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the firestore ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 1s or 250ms: %w", key, err)
	}
	return d, nil
}
