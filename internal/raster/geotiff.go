// Package raster writes minimal GeoTIFF files: uncompressed, band
// sequential, one strip per band, with GeoKey georeferencing and GDAL
// style nodata/metadata tags. Windows are written by seeking into the
// pre-sized pixel region; the IFD is emitted at close so tags may be added
// while writing.
package raster

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

// Options fixes the file layout at creation time.
type Options struct {
	Width  int
	Height int
	Bands  int
	Dtype  domain.Dtype
	Nodata float64
	// CRS is an EPSG identifier ("EPSG:3577"); georeferencing is skipped
	// when it cannot be parsed.
	CRS     string
	OriginX float64
	OriginY float64
	ResX    float64
	ResY    float64
}

// File is an open GeoTIFF being written.
type File struct {
	f        *os.File
	opts     Options
	size     int
	tags     map[string]string
	bandTags []map[string]string
	closed   bool
}

const pixelDataOffset = 8

// Create opens path for writing and pre-sizes the pixel region. The band b
// pixel (x, y) lives at a fixed offset, so disjoint window writes never
// overlap.
func Create(path string, opts Options) (*File, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Bands <= 0 {
		return nil, fmt.Errorf("raster: non-positive dimensions %dx%dx%d", opts.Width, opts.Height, opts.Bands)
	}
	size, err := opts.Dtype.Size()
	if err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	dataLen := int64(opts.Bands) * int64(opts.Height) * int64(opts.Width) * int64(size)
	if err := f.Truncate(pixelDataOffset + dataLen); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("raster: presize %s: %w", path, err)
	}
	file := &File{
		f:        f,
		opts:     opts,
		size:     size,
		tags:     map[string]string{},
		bandTags: make([]map[string]string, opts.Bands),
	}
	for i := range file.bandTags {
		file.bandTags[i] = map[string]string{}
	}
	return file, nil
}

// Name returns the underlying file path.
func (w *File) Name() string { return w.f.Name() }

// SetTag records a file-level metadata item.
func (w *File) SetTag(key, value string) { w.tags[key] = value }

// SetBandTag records a metadata item against a 1-based band.
func (w *File) SetBandTag(band int, key, value string) {
	if band >= 1 && band <= len(w.bandTags) {
		w.bandTags[band-1][key] = value
	}
}

// WriteWindow writes a (h × width) sample block into the 1-based band at
// pixel offset (xoff, yoff). data is row-major raw samples of the file's
// dtype.
func (w *File) WriteWindow(band, xoff, yoff, width, height int, data []byte) error {
	if band < 1 || band > w.opts.Bands {
		return fmt.Errorf("raster: band %d out of range", band)
	}
	if xoff < 0 || yoff < 0 || xoff+width > w.opts.Width || yoff+height > w.opts.Height {
		return fmt.Errorf("raster: window %dx%d+%d+%d outside %dx%d",
			width, height, xoff, yoff, w.opts.Width, w.opts.Height)
	}
	if len(data) != width*height*w.size {
		return fmt.Errorf("raster: window payload is %d bytes, want %d", len(data), width*height*w.size)
	}
	bandBase := int64(pixelDataOffset) + int64(band-1)*int64(w.opts.Height)*int64(w.opts.Width)*int64(w.size)
	rowBytes := width * w.size
	for row := 0; row < height; row++ {
		off := bandBase + (int64(yoff+row)*int64(w.opts.Width)+int64(xoff))*int64(w.size)
		if _, err := w.f.WriteAt(data[row*rowBytes:(row+1)*rowBytes], off); err != nil {
			return fmt.Errorf("raster: write row: %w", err)
		}
	}
	return nil
}

// Close writes the TIFF header and IFD and closes the file. Safe to call
// once only.
func (w *File) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writeStructure(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// TIFF field types.
const (
	typeShort  = 3
	typeLong   = 4
	typeAscii  = 2
	typeDouble = 12
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	// value is the raw little-endian encoding of the entry payload; it is
	// inlined when it fits in four bytes, otherwise placed in the external
	// value area.
	value []byte
}

func (w *File) writeStructure() error {
	end, err := w.f.Seek(0, 2)
	if err != nil {
		return err
	}
	ifdOffset := uint32(end)

	entries := w.buildEntries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// Entry table, then the external value area.
	extBase := ifdOffset + 2 + uint32(len(entries))*12 + 4
	var table []byte
	var ext []byte
	table = binary.LittleEndian.AppendUint16(table, uint16(len(entries)))
	for _, e := range entries {
		table = binary.LittleEndian.AppendUint16(table, e.tag)
		table = binary.LittleEndian.AppendUint16(table, e.typ)
		table = binary.LittleEndian.AppendUint32(table, e.count)
		if len(e.value) <= 4 {
			v := make([]byte, 4)
			copy(v, e.value)
			table = append(table, v...)
		} else {
			table = binary.LittleEndian.AppendUint32(table, extBase+uint32(len(ext)))
			ext = append(ext, e.value...)
			if len(ext)%2 == 1 {
				ext = append(ext, 0)
			}
		}
	}
	table = binary.LittleEndian.AppendUint32(table, 0) // no next IFD
	if _, err := w.f.WriteAt(append(table, ext...), int64(ifdOffset)); err != nil {
		return err
	}

	header := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(header[4:], ifdOffset)
	_, err = w.f.WriteAt(header, 0)
	return err
}

func (w *File) buildEntries() []ifdEntry {
	o := w.opts
	bandLen := uint32(o.Height) * uint32(o.Width) * uint32(w.size)

	offsets := make([]uint32, o.Bands)
	counts := make([]uint32, o.Bands)
	for b := range offsets {
		offsets[b] = pixelDataOffset + uint32(b)*bandLen
		counts[b] = bandLen
	}

	entries := []ifdEntry{
		shortEntry(256, uint16(o.Width)),   // ImageWidth
		shortEntry(257, uint16(o.Height)),  // ImageLength
		shortsEntry(258, repeatShort(uint16(w.size*8), o.Bands)), // BitsPerSample
		shortEntry(259, 1),                 // Compression: none
		shortEntry(262, 1),                 // Photometric: BlackIsZero
		shortEntry(277, uint16(o.Bands)),   // SamplesPerPixel
		shortEntry(278, uint16(o.Height)),  // RowsPerStrip
		longsEntry(273, offsets),           // StripOffsets
		longsEntry(279, counts),            // StripByteCounts
		shortEntry(284, 2),                 // PlanarConfiguration: band sequential
		shortsEntry(339, repeatShort(sampleFormat(o.Dtype), o.Bands)), // SampleFormat
	}

	entries = append(entries,
		doublesEntry(33550, []float64{abs(o.ResX), abs(o.ResY), 0}),                  // ModelPixelScale
		doublesEntry(33922, []float64{0, 0, 0, o.OriginX, o.OriginY, 0}),             // ModelTiepoint
	)
	if keys := w.geoKeys(); keys != nil {
		entries = append(entries, shortsEntry(34735, keys)) // GeoKeyDirectory
	}
	entries = append(entries, asciiEntry(42113, strconv.FormatFloat(o.Nodata, 'g', -1, 64))) // GDAL_NODATA
	if meta := w.gdalMetadata(); meta != "" {
		entries = append(entries, asciiEntry(42112, meta)) // GDAL_METADATA
	}
	return entries
}

// geoKeys builds the minimal GeoKey directory for an EPSG CRS.
func (w *File) geoKeys() []uint16 {
	epsg, ok := epsgCode(w.opts.CRS)
	if !ok {
		return nil
	}
	modelType := uint16(1) // projected
	csKey := uint16(3072)  // ProjectedCSType
	if geographic(epsg) {
		modelType = 2
		csKey = 2048 // GeographicType
	}
	return []uint16{
		1, 1, 0, 3, // version, revision, minor, key count
		1024, 0, 1, modelType, // GTModelType
		1025, 0, 1, 1, // GTRasterType: PixelIsArea
		csKey, 0, 1, epsg,
	}
}

type gdalItem struct {
	XMLName xml.Name `xml:"Item"`
	Name    string   `xml:"name,attr"`
	Sample  string   `xml:"sample,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// gdalMetadata renders file and band tags in the GDAL metadata XML layout.
func (w *File) gdalMetadata() string {
	var items []gdalItem
	for _, k := range sortedKeys(w.tags) {
		items = append(items, gdalItem{Name: k, Value: w.tags[k]})
	}
	for band, tags := range w.bandTags {
		for _, k := range sortedKeys(tags) {
			items = append(items, gdalItem{Name: k, Sample: strconv.Itoa(band), Value: tags[k]})
		}
	}
	if len(items) == 0 {
		return ""
	}
	body, err := xml.Marshal(struct {
		XMLName xml.Name `xml:"GDALMetadata"`
		Items   []gdalItem
	}{Items: items})
	if err != nil {
		return ""
	}
	return string(body)
}

func sampleFormat(d domain.Dtype) uint16 {
	switch d {
	case domain.DtypeFloat32, domain.DtypeFloat64:
		return 3
	case domain.DtypeInt8, domain.DtypeInt16, domain.DtypeInt32:
		return 2
	default:
		return 1
	}
}

// epsgCode parses "EPSG:nnnn" identifiers.
func epsgCode(crs string) (uint16, bool) {
	s := strings.TrimSpace(strings.ToUpper(crs))
	if !strings.HasPrefix(s, "EPSG:") {
		return 0, false
	}
	n, err := strconv.Atoi(s[len("EPSG:"):])
	if err != nil || n <= 0 || n > 65535 {
		return 0, false
	}
	return uint16(n), true
}

func geographic(epsg uint16) bool {
	switch epsg {
	case 4326, 4283, 4269:
		return true
	}
	return false
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	return shortsEntry(tag, []uint16{v})
}

func shortsEntry(tag uint16, vs []uint16) ifdEntry {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vs)), value: b}
}

func longsEntry(tag uint16, vs []uint32) ifdEntry {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(vs)), value: b}
}

func doublesEntry(tag uint16, vs []float64) ifdEntry {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(vs)), value: b}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeAscii, count: uint32(len(b)), value: b}
}

func repeatShort(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
