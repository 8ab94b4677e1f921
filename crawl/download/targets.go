// CLAUDE:SUMMARY Built-in bulk download targets: EEA direct export and the browser-only climate policy database export.
package download

import "context"

// Target is one bulk dataset to retrieve.
type Target struct {
	Name string
	// URL is the direct export URL, for targets a plain GET can fetch.
	URL      string
	Filename string
	// PageURL/ButtonSelector/Pattern describe a browser-only export.
	PageURL        string
	ButtonSelector string
	Pattern        string
}

// Browser reports whether the target needs a headless browser.
func (t Target) Browser() bool { return t.PageURL != "" }

// Targets returns the bulk datasets a full collection run downloads.
func Targets() []Target {
	return []Target{
		{
			Name: "EEA",
			URL: "http://pam.apps.eea.europa.eu/tools/download?download_query=" +
				"http%3A%2F%2Fpam.apps.eea.europa.eu%2F%3Fsource%3D%7B%22track_total_hits%22%3Atrue" +
				"%2C%22query%22%3A%7B%22match_all%22%3A%7B%7D%7D%2C%22display_type%22%3A%22tabular%22" +
				"%2C%22sort%22%3A%5B%7B%22Country%22%3A%7B%22order%22%3A%22asc%22%7D%7D" +
				"%2C%7B%22ID_of_policy_or_measure%22%3A%7B%22order%22%3A%22asc%22%7D%7D%5D" +
				"%2C%22highlight%22%3A%7B%22fields%22%3A%7B%22*%22%3A%7B%7D%7D%7D%7D&download_format=csv",
			Filename: "EEA.csv",
		},
		{
			Name:           "ClimatePolicyDatabase",
			PageURL:        "https://climatepolicydatabase.org/policies/export?page&_format=csv",
			ButtonSelector: "#vde-automatic-download",
			Pattern:        "*.csv",
		},
	}
}

// Fetch retrieves one target with the client for direct URLs or a
// headless browser for button-gated exports.
func Fetch(ctx context.Context, c *Client, t Target) (string, error) {
	if t.Browser() {
		return BrowserExport(ctx, t.PageURL, t.ButtonSelector, t.Pattern, BrowserConfig{
			OutputDir: c.cfg.OutputDir,
			Logger:    c.cfg.Logger,
		})
	}
	return c.Direct(ctx, t.URL, t.Filename)
}
