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
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/tiff"
	"golang.org/x/image/tiff/lzw"
)

// TIFF tags used by the elevation decoder.
const (
	tImageWidth      = 256
	tImageLength     = 257
	tBitsPerSample   = 258
	tCompression     = 259
	tStripOffsets    = 273
	tSamplesPerPixel = 277
	tRowsPerStrip    = 278
	tStripByteCounts = 279
	tPlanarConfig    = 284
	tPredictor       = 317
	tTileWidth       = 322
	tTileLength      = 323
	tTileOffsets     = 324
	tTileByteCounts  = 325
	tSampleFormat    = 339
	tPixelScale      = 33550
	tTiepoint        = 33922
	tGDALNoData      = 42113
)

// Field values.
const (
	cNone         = 1
	cLZW          = 5
	cDeflate      = 8
	cDeflateOld   = 32946
	sampleFloat   = 3
	predictorNone = 1
)

// raster is a single-band floating point image read from a TIFF file.
type raster struct {
	width, height int
	data          []float64 // row-major, first row at the top

	// Georeferencing from the GeoTIFF tags, if present.
	hasGeo         bool
	originX        float64 // upper left corner
	originY        float64
	scaleX, scaleY float64

	hasNoData bool
	noData    float64
}

type tiffReader struct {
	b     []byte
	order binary.ByteOrder
	ifd   tiff.IFD
}

// decodeTIFF decodes the first image of a single-band 32 or 64 bit
// floating point TIFF, which may be stripped or tiled and uncompressed,
// LZW or deflate compressed.
func decodeTIFF(b []byte) (*raster, error) {
	t, err := tiff.Parse(bytes.NewReader(b), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("dem: %v", err)
	}
	if len(t.IFDs()) == 0 {
		return nil, fmt.Errorf("dem: tiff: no images")
	}
	d := &tiffReader{
		b:     b,
		order: tiff.GetByteOrder(binary.BigEndian.Uint16(b[:2])),
		ifd:   t.IFDs()[0],
	}

	r := &raster{width: d.first(tImageWidth, 0), height: d.first(tImageLength, 0)}
	if r.width <= 0 || r.height <= 0 {
		return nil, fmt.Errorf("dem: tiff: invalid image size %dx%d", r.width, r.height)
	}
	bits := d.first(tBitsPerSample, 1)
	if bits != 32 && bits != 64 {
		return nil, fmt.Errorf("dem: tiff: unsupported bits per sample %d", bits)
	}
	if f := d.first(tSampleFormat, 1); f != sampleFloat {
		return nil, fmt.Errorf("dem: tiff: sample format %d is not floating point", f)
	}
	if spp := d.first(tSamplesPerPixel, 1); spp != 1 {
		return nil, fmt.Errorf("dem: tiff: %d samples per pixel; want 1", spp)
	}
	if p := d.first(tPredictor, predictorNone); p != predictorNone {
		return nil, fmt.Errorf("dem: tiff: unsupported predictor %d", p)
	}
	compression := d.first(tCompression, cNone)

	// Strips are tiles that span the image width.
	blockW, blockH := r.width, d.first(tRowsPerStrip, r.height)
	offsets, counts := d.ints(tStripOffsets), d.ints(tStripByteCounts)
	if d.ifd.HasField(tTileWidth) {
		blockW, blockH = d.first(tTileWidth, 0), d.first(tTileLength, 0)
		offsets, counts = d.ints(tTileOffsets), d.ints(tTileByteCounts)
	}
	if blockW <= 0 || blockH <= 0 {
		return nil, fmt.Errorf("dem: tiff: invalid block size %dx%d", blockW, blockH)
	}
	if blockH > r.height {
		blockH = r.height
	}
	across := (r.width + blockW - 1) / blockW
	down := (r.height + blockH - 1) / blockH
	if len(offsets) < across*down || len(counts) < len(offsets) {
		return nil, fmt.Errorf("dem: tiff: %d blocks present; want %d", len(offsets), across*down)
	}

	r.data = make([]float64, r.width*r.height)
	bytesPer := bits / 8
	for i := 0; i < across*down; i++ {
		block, err := d.block(offsets[i], counts[i], compression)
		if err != nil {
			return nil, err
		}
		x0, y0 := (i%across)*blockW, (i/across)*blockH
		for y := 0; y < blockH && y0+y < r.height; y++ {
			for x := 0; x < blockW && x0+x < r.width; x++ {
				k := (y*blockW + x) * bytesPer
				if k+bytesPer > len(block) {
					return nil, fmt.Errorf("dem: tiff: block %d is truncated", i)
				}
				var v float64
				if bits == 32 {
					v = float64(math.Float32frombits(d.order.Uint32(block[k:])))
				} else {
					v = math.Float64frombits(d.order.Uint64(block[k:]))
				}
				r.data[(y0+y)*r.width+x0+x] = v
			}
		}
	}

	if scale := d.floats(tPixelScale); len(scale) >= 2 {
		if tp := d.floats(tTiepoint); len(tp) >= 6 {
			r.hasGeo = true
			r.scaleX, r.scaleY = scale[0], scale[1]
			r.originX = tp[3] - tp[0]*scale[0]
			r.originY = tp[4] + tp[1]*scale[1]
		}
	}
	if d.ifd.HasField(tGDALNoData) {
		s := strings.Trim(string(d.ifd.GetField(tGDALNoData).Value().Bytes()), "\x00 ")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			r.hasNoData, r.noData = true, v
		}
	}
	return r, nil
}

// ints returns the values of an integer tag.
func (d *tiffReader) ints(tag uint16) []int {
	if !d.ifd.HasField(tag) {
		return nil
	}
	f := d.ifd.GetField(tag)
	raw := f.Value().Bytes()
	o := make([]int, f.Count())
	for i := range o {
		switch f.Type().ID() {
		case 1:
			o[i] = int(raw[i])
		case 3:
			o[i] = int(d.order.Uint16(raw[2*i:]))
		case 4:
			o[i] = int(d.order.Uint32(raw[4*i:]))
		default:
			return nil
		}
	}
	return o
}

// first returns the first value of an integer tag, or def if it is absent.
func (d *tiffReader) first(tag uint16, def int) int {
	v := d.ints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

// floats returns the values of a double tag.
func (d *tiffReader) floats(tag uint16) []float64 {
	if !d.ifd.HasField(tag) {
		return nil
	}
	f := d.ifd.GetField(tag)
	if f.Type().ID() != 12 {
		return nil
	}
	raw := f.Value().Bytes()
	o := make([]float64, f.Count())
	for i := range o {
		o[i] = math.Float64frombits(d.order.Uint64(raw[8*i:]))
	}
	return o
}

// block returns the uncompressed bytes of a strip or tile.
func (d *tiffReader) block(off, n, compression int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(d.b) {
		return nil, fmt.Errorf("dem: tiff: block out of range")
	}
	raw := d.b[off : off+n]
	switch compression {
	case cNone:
		return raw, nil
	case cLZW:
		r := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer r.Close()
		return io.ReadAll(r)
	case cDeflate, cDeflateOld:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("dem: tiff: %v", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return nil, fmt.Errorf("dem: tiff: unsupported compression %d", compression)
}
