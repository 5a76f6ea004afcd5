package converter

// Options configures a Converter. Values are merged with defaults once, in
// New, and never change for the lifetime of the Converter. The option layer
// performs no validation of its own; a malformed Size string, for example,
// is rejected by the rasterizer when a conversion is attempted.
type Options struct {
	// Quality is the encoder quality (0-100). 0 leaves the encoder default.
	Quality int
	// Format is the output image extension, without the dot ("png", "jpg"...).
	Format string
	// Size is the target bounding box as "WxH" in pixels.
	Size string
	// Density is the rasterization resolution in DPI.
	Density int
	// SaveDirectory is where output files are written. When empty, a
	// directory named after the input file's base name is used.
	SaveDirectory string
	// SaveName is the output file name stem. When empty, the input file's
	// base name is used.
	SaveName string
	// Compression names the compression scheme passed to the rasterizer
	// ("jpeg", "none", ...).
	Compression string
	// MaxConcurrency bounds the number of pages converted in parallel by
	// the bulk operations. Zero picks the default; a negative value runs
	// one worker per page.
	MaxConcurrency int
}

// DefaultOptions returns the documented defaults. Quality, SaveDirectory
// and SaveName have no default value: quality 0 keeps the encoder default,
// and the save fields are derived from the input file at conversion time
// when left empty.
func DefaultOptions() Options {
	return Options{
		Format:         "png",
		Size:           "768x512",
		Density:        72,
		Compression:    "jpeg",
		MaxConcurrency: 4,
	}
}

// withDefaults fills zero-valued fields from DefaultOptions. Quality,
// SaveDirectory and SaveName intentionally keep their zero values: quality 0
// means "encoder default", and empty save fields mean "derive from the input
// file" at conversion time.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Format == "" {
		o.Format = def.Format
	}
	if o.Size == "" {
		o.Size = def.Size
	}
	if o.Density <= 0 {
		o.Density = def.Density
	}
	if o.Compression == "" {
		o.Compression = def.Compression
	}
	if o.MaxConcurrency == 0 {
		o.MaxConcurrency = def.MaxConcurrency
	}
	return o
}
