package raster

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/GeoscienceAustralia/agdc-statistics/pkg/domain"
)

func smallOptions(bands int) Options {
	return Options{
		Width: 4, Height: 3, Bands: bands,
		Dtype: domain.DtypeInt16, Nodata: -1,
		CRS: "EPSG:3577", OriginX: 1500000, OriginY: -3900000, ResX: 25, ResY: -25,
	}
}

func TestCreateRejectsBadDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tif")
	if _, err := Create(path, Options{Width: 0, Height: 3, Bands: 1, Dtype: domain.DtypeInt16}); err == nil {
		t.Fatalf("zero width must be rejected")
	}
}

func TestWriteWindowBoundsChecked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.tif")
	f, err := Create(path, smallOptions(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() { _ = f.Close() }()

	if err := f.WriteWindow(2, 0, 0, 1, 1, make([]byte, 2)); err == nil {
		t.Fatalf("band out of range must fail")
	}
	if err := f.WriteWindow(1, 3, 0, 2, 1, make([]byte, 4)); err == nil {
		t.Fatalf("window past the right edge must fail")
	}
	if err := f.WriteWindow(1, 0, 0, 2, 1, make([]byte, 3)); err == nil {
		t.Fatalf("short payload must fail")
	}
}

func TestCloseProducesValidTIFFStructure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tif")
	f, err := Create(path, smallOptions(2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// One full row per band.
	row := make([]byte, 4*2)
	binary.LittleEndian.PutUint16(row[0:], 100)
	binary.LittleEndian.PutUint16(row[2:], 200)
	binary.LittleEndian.PutUint16(row[4:], 300)
	binary.LittleEndian.PutUint16(row[6:], 400)
	if err := f.WriteWindow(1, 0, 1, 4, 1, row); err != nil {
		t.Fatalf("WriteWindow band 1: %v", err)
	}
	if err := f.WriteWindow(2, 0, 0, 4, 1, row); err != nil {
		t.Fatalf("WriteWindow band 2: %v", err)
	}
	f.SetTag("source_products", "ls8_nbar")
	f.SetBandTag(1, "name", "count_wet")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(raw) < 8 || raw[0] != 'I' || raw[1] != 'I' || binary.LittleEndian.Uint16(raw[2:]) != 42 {
		t.Fatalf("missing little-endian TIFF header: % x", raw[:8])
	}
	ifdOffset := binary.LittleEndian.Uint32(raw[4:])
	if int(ifdOffset) >= len(raw) {
		t.Fatalf("IFD offset %d beyond file end %d", ifdOffset, len(raw))
	}
	// Band 1 row 1 starts at pixel offset 8 + width*rowBytes.
	pix := binary.LittleEndian.Uint16(raw[8+4*2:])
	if pix != 100 {
		t.Fatalf("band 1 pixel (0,1) = %d, want 100", pix)
	}
	// Band 2 plane follows band 1's 4x3 int16 plane.
	pix = binary.LittleEndian.Uint16(raw[8+4*3*2:])
	if pix != 100 {
		t.Fatalf("band 2 pixel (0,0) = %d, want 100", pix)
	}

	entryCount := binary.LittleEndian.Uint16(raw[ifdOffset:])
	if entryCount == 0 {
		t.Fatalf("empty IFD")
	}
	// Entries must be ascending by tag per the TIFF spec.
	var prev uint16
	for i := 0; i < int(entryCount); i++ {
		tag := binary.LittleEndian.Uint16(raw[int(ifdOffset)+2+i*12:])
		if tag < prev {
			t.Fatalf("IFD tags not ascending: %d after %d", tag, prev)
		}
		prev = tag
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.tif")
	f, err := Create(path, smallOptions(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
