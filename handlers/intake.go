package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/takigawalab/indexapi/intake"
)

// maxIntakeImage caps uploaded race-card images at 10MB.
const maxIntakeImage = 10 << 20

// AdminAnalyzeIntake runs the analyzer over an uploaded race card image or a
// pasted text block and returns draft races for review. It accepts either
// multipart form data with an "image" file and/or "text" field, or a plain
// JSON body with a "text" field.
func (h *Handler) AdminAnalyzeIntake(c echo.Context) error {
	in, err := readIntakeInput(c)
	if err != nil {
		return err
	}

	drafts, err := h.analyzer.Analyze(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"drafts": drafts})
}

func readIntakeInput(c echo.Context) (intake.Input, error) {
	var in intake.Input

	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		in.Text = c.FormValue("text")
		fh, err := c.FormFile("image")
		if err == nil {
			if fh.Size > maxIntakeImage {
				return in, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
			}
			f, err := fh.Open()
			if err != nil {
				return in, echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			defer f.Close()
			in.Image, err = io.ReadAll(f)
			if err != nil {
				return in, echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
		}
		return in, nil
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.Text = body.Text
	return in, nil
}
