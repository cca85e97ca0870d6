/*
Copyright © 2021 the xstool authors.
This file is part of xstool.

xstool is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xstool is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xstool.  If not, see <http://www.gnu.org/licenses/>.
*/

package dem

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"sort"
	"testing"
)

type testTag struct {
	tag, typ uint16
	count    uint32
	val      []byte
}

func shortTag(tag uint16, v uint16) testTag {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return testTag{tag: tag, typ: 3, count: 1, val: b}
}

func longTag(tag uint16, v uint32) testTag {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return testTag{tag: tag, typ: 4, count: 1, val: b}
}

func doubleTag(tag uint16, v ...float64) testTag {
	b := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(f))
	}
	return testTag{tag: tag, typ: 12, count: uint32(len(v)), val: b}
}

// geoInfo holds the georeferencing written by encodeTIFF.
type geoInfo struct {
	originX, originY, dx, dy float64
}

// encodeTIFF writes a little-endian single strip float32 TIFF. If geo is
// not nil GeoTIFF georeferencing tags are added and if nodata is not empty
// a GDAL nodata tag is added.
func encodeTIFF(t testing.TB, w, h int, data []float32, deflate bool, geo *geoInfo, nodata string) []byte {
	if len(data) != w*h {
		t.Fatalf("encodeTIFF: have %d values for %dx%d image", len(data), w, h)
	}
	pix := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(pix[4*i:], math.Float32bits(v))
	}
	compression := uint16(cNone)
	if deflate {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(pix); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		pix = buf.Bytes()
		compression = cDeflate
	}

	tags := []testTag{
		longTag(tImageWidth, uint32(w)),
		longTag(tImageLength, uint32(h)),
		shortTag(tBitsPerSample, 32),
		shortTag(tCompression, compression),
		longTag(tStripOffsets, 0), // set below
		shortTag(tSamplesPerPixel, 1),
		longTag(tRowsPerStrip, uint32(h)),
		longTag(tStripByteCounts, uint32(len(pix))),
		shortTag(tSampleFormat, sampleFloat),
	}
	if geo != nil {
		tags = append(tags,
			doubleTag(tPixelScale, geo.dx, geo.dy, 0),
			doubleTag(tTiepoint, 0, 0, 0, geo.originX, geo.originY, 0))
	}
	if nodata != "" {
		tags = append(tags, testTag{tag: tGDALNoData, typ: 2, count: uint32(len(nodata) + 1), val: append([]byte(nodata), 0)})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].tag < tags[j].tag })

	ifdSize := 2 + 12*len(tags) + 4
	extra := 8 + ifdSize
	var extraBytes []byte
	offsets := make([]int, len(tags))
	for i, tg := range tags {
		if len(tg.val) > 4 {
			offsets[i] = extra + len(extraBytes)
			extraBytes = append(extraBytes, tg.val...)
		}
	}
	dataOff := extra + len(extraBytes)
	for i := range tags {
		if tags[i].tag == tStripOffsets {
			binary.LittleEndian.PutUint32(tags[i].val, uint32(dataOff))
		}
	}

	var b bytes.Buffer
	b.WriteString("II*\x00")
	binary.Write(&b, binary.LittleEndian, uint32(8))
	binary.Write(&b, binary.LittleEndian, uint16(len(tags)))
	for i, tg := range tags {
		binary.Write(&b, binary.LittleEndian, tg.tag)
		binary.Write(&b, binary.LittleEndian, tg.typ)
		binary.Write(&b, binary.LittleEndian, tg.count)
		v := make([]byte, 4)
		if len(tg.val) > 4 {
			binary.LittleEndian.PutUint32(v, uint32(offsets[i]))
		} else {
			copy(v, tg.val)
		}
		b.Write(v)
	}
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.Write(extraBytes)
	b.Write(pix)
	return b.Bytes()
}

func TestDecodeTIFF(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, -9999}
	geo := &geoInfo{originX: 500, originY: 1000, dx: 10, dy: 20}
	for _, deflate := range []bool{false, true} {
		r, err := decodeTIFF(encodeTIFF(t, 3, 2, data, deflate, geo, "-9999"))
		if err != nil {
			t.Fatalf("deflate=%v: %v", deflate, err)
		}
		if r.width != 3 || r.height != 2 {
			t.Errorf("deflate=%v: size %dx%d, want 3x2", deflate, r.width, r.height)
		}
		for i, v := range data {
			if r.data[i] != float64(v) {
				t.Errorf("deflate=%v: value %d: have %g, want %g", deflate, i, r.data[i], v)
			}
		}
		if !r.hasGeo || r.originX != 500 || r.originY != 1000 || r.scaleX != 10 || r.scaleY != 20 {
			t.Errorf("deflate=%v: georeferencing %+v", deflate, r)
		}
		if !r.hasNoData || r.noData != -9999 {
			t.Errorf("deflate=%v: nodata %v %g", deflate, r.hasNoData, r.noData)
		}
	}
}

func TestDecodeTIFFPlain(t *testing.T) {
	r, err := decodeTIFF(encodeTIFF(t, 2, 2, []float32{1, 2, 3, 4}, false, nil, ""))
	if err != nil {
		t.Fatal(err)
	}
	if r.hasGeo || r.hasNoData {
		t.Errorf("hasGeo=%v hasNoData=%v, want false", r.hasGeo, r.hasNoData)
	}
}

func TestDecodeTIFFErrors(t *testing.T) {
	good := encodeTIFF(t, 2, 2, []float32{1, 2, 3, 4}, false, nil, "")
	truncated := good[:len(good)-4]
	badOffset := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badOffset[4:], uint32(len(good)+100))
	for name, b := range map[string][]byte{
		"empty":      nil,
		"png":        []byte("\x89PNG\r\n\x1a\n0000"),
		"truncated":  truncated,
		"bad offset": badOffset,
		"header":     good[:8],
	} {
		if _, err := decodeTIFF(b); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
