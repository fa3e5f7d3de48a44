// data_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"RideLens/src/datasource/file"
	"RideLens/src/storage"
	"RideLens/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// DatasetAttachmentHandler saves the dataset attachment of a matching mail
// into the data directory under the configured dataset file name, so the
// file monitor picks the new data up like any on-disk replacement.
type DatasetAttachmentHandler struct {
	targetSubject string
	dataDir       string
	fileName      string // name the attachment is saved as
}

func NewDatasetAttachmentHandler(targetSubject, dataDir, fileName string) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		targetSubject: targetSubject,
		dataDir:       dataDir,
		fileName:      fileName,
	}
}

// Handle parses the first tabular attachment in memory and, only if it is a
// readable dataset, persists it under the configured name and format. A
// corrupt attachment therefore never clobbers the dataset on disk. Mails
// without a matching subject or without a .csv/.xlsx attachment are ignored.
func (h *DatasetAttachmentHandler) Handle(email *Email, logger *storage.Logger) error {
	if email == nil {
		return nil
	}
	if !strings.Contains(email.Subject, h.targetSubject) {
		return nil
	}

	att := firstTabularAttachment(email)
	if att == nil {
		logger.Warning(fmt.Sprintf("dataset mail %q carries no tabular attachment", email.Subject))
		return nil
	}

	df, err := file.ReadDatasetBytes(att.Content, filepath.Ext(att.Filename), "", nil)
	if err != nil {
		return fmt.Errorf("attachment %s is not a readable dataset: %w", att.Filename, err)
	}

	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// Persist in the configured format, converting when the attachment
	// arrived in the other one.
	target := filepath.Join(h.dataDir, h.fileName)
	switch strings.ToLower(filepath.Ext(h.fileName)) {
	case ".xlsx":
		err = utils.SaveToExcel(df, target)
	case ".csv":
		err = saveCSV(df, target)
	default:
		return fmt.Errorf("unsupported dataset file name %q", h.fileName)
	}
	if err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	logger.Info(fmt.Sprintf("saved dataset attachment %s (%d rows) to %s",
		att.Filename, df.Nrow(), target))
	return nil
}

func saveCSV(df dataframe.DataFrame, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return df.WriteCSV(f)
}

func firstTabularAttachment(email *Email) *Attachment {
	for _, att := range email.Attachments {
		switch strings.ToLower(filepath.Ext(att.Filename)) {
		case ".csv", ".xlsx":
			return att
		}
	}
	return nil
}
