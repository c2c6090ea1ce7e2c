package diagram

// Options are the per-occurrence rendering options set by the directive.
type Options struct {
	// MaxWidth requests a thumbnail of at most this width; 0 disables it.
	MaxWidth int `json:"maxwidth,omitempty"`
	// Alt is the alternative text of the image.
	Alt string `json:"alt,omitempty"`
	// Class is an extra CSS class for the wrapping paragraph.
	Class string `json:"class,omitempty"`

	// DocName is the document the diagram occurs in. It only affects link
	// resolution and is not part of the file name.
	DocName string `json:"-"`

	// Fingerprint identifies the renderer settings that change the output
	// (see [Settings.Fingerprint]).
	Fingerprint string `json:"settings,omitempty"`

	// Links are the node hyperlinks written into SVG and PDF files, keyed
	// by node id. Nodes without an entry lose their link.
	Links map[string]string `json:"links,omitempty"`
}
