package bot

import (
	"errors"
	"fmt"
	"html"
	"math"
	"time"

	"github.com/dmitrijs2005/ezfile/internal/common"
	"github.com/dmitrijs2005/ezfile/internal/gate"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
	"github.com/dmitrijs2005/ezfile/internal/server/services"
)

const (
	startMessage = "<strong>Welcome to EzFileHandler, %s!</strong>\n\n" +
		"This bot 🤖 was built to serve <strong>you</strong> efficiently, making file " +
		"<i>upload</i> and <i>download</i> 📁 easy.\n\n" +
		"Type <strong><i>/menu</i></strong> to see the options."

	notStartedMessage  = "Type /start to begin!"
	menuMessage        = "Choose an option below:"
	uploadPrompt       = "<strong>Please send the file in the chat within %d secs.</strong>"
	uploadNotArmed     = "Click <i>'Upload file'</i> in <strong><i>/menu</i></strong> to send a file."
	uploadBusy         = "An upload is already in progress."
	uploadDone         = "File uploaded successfully!"
	processingMessage  = "Processing..."
	timeUpMessage      = "Time is up!"
	noFilesMessage     = "No files found."
	fileMenuMessage    = "File: <i><b>%s</b></i>"
	listMessage        = "<b>%s</b>, these are your files:\n<i>Used: <b>%s/%s</b></i>"
	downloadFailed     = "<b>Error:</b> could not find the file <b><i>%s</i></b>."
	removedMessage     = "File <i><b>%s</b></i> removed from your storage.\nFreed <i><b>%s</b></i>"
	removeFailed       = "Error removing the file."
	staleMenuMessage   = "This menu has expired. Open /menu again."
	genericFailMessage = "Something went wrong. Please try again."

	buttonUpload   = "Upload file"
	buttonList     = "List files"
	buttonDownload = "Download"
	buttonRemove   = "Remove"
	buttonBack     = "Back"
)

var processingFrames = []string{"Processing.", "Processing..", "Processing..."}

func windowSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}

// uploadErrorText maps a failed upload to the text that replaces the
// progress indicator.
func uploadErrorText(err error, limits services.Limits) string {
	switch {
	case errors.Is(err, common.ErrMissingName):
		return "Error: the file has no name."
	case errors.Is(err, common.ErrSizeExceeded):
		return fmt.Sprintf("Error: file exceeds the maximum allowed size of %s.", models.FormatSize(limits.MaxFileSize))
	case errors.Is(err, common.ErrQuotaExceeded):
		return fmt.Sprintf("Error: storage limit of %s exceeded.", models.FormatSize(limits.MaxUserStorage))
	case errors.Is(err, common.ErrTransfer):
		return "Error: the file could not be downloaded!"
	default:
		return "Error: " + genericFailMessage
	}
}

func armErrorText(err error) string {
	if errors.Is(err, gate.ErrBusy) {
		return uploadBusy
	}
	return genericFailMessage
}

func escape(s string) string {
	return html.EscapeString(s)
}
