/*
Copyright 2024 OpenClaw.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package executor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
)

// decodeICO decodes the largest image embedded in a Windows .ico container.
//
// No maintained third-party decoder for this format turned up anywhere in
// the pack or the wider ecosystem, so this is a deliberate stdlib-only
// exception (see DESIGN.md). An .ico directory entry either embeds a raw
// BMP DIB or a full PNG; only the PNG case is handled, since favicon
// sources overwhelmingly use it and a DIB decoder would dwarf the rest of
// this package for a format thumbnails rarely arrive in.
func decodeICO(body []byte) (image.Image, error) {
	r := bytes.NewReader(body)

	var header struct {
		Reserved  uint16
		ImageType uint16
		Count     uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("ico: read header: %w", err)
	}
	if header.ImageType != 1 {
		return nil, fmt.Errorf("ico: unsupported image type %d", header.ImageType)
	}
	if header.Count == 0 {
		return nil, fmt.Errorf("ico: no images in directory")
	}

	type dirEntry struct {
		Width, Height, ColorCount, Reserved byte
		Planes, BitCount                    uint16
		BytesInRes                          uint32
		ImageOffset                         uint32
	}

	entries := make([]dirEntry, header.Count)
	for i := range entries {
		if err := binary.Read(r, binary.LittleEndian, &entries[i]); err != nil {
			return nil, fmt.Errorf("ico: read directory entry %d: %w", i, err)
		}
	}

	best := entries[0]
	for _, e := range entries[1:] {
		if e.BytesInRes > best.BytesInRes {
			best = e
		}
	}

	if int(best.ImageOffset)+int(best.BytesInRes) > len(body) {
		return nil, fmt.Errorf("ico: image data out of range")
	}
	data := body[best.ImageOffset : best.ImageOffset+best.BytesInRes]

	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return nil, fmt.Errorf("ico: embedded image is not PNG-encoded, which is the only supported variant")
	}

	return png.Decode(bytes.NewReader(data))
}
