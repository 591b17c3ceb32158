package hpos

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/motionlab/handrec/internal/domain"
)

// File layout, all little-endian:
//
//	header:  magic "HPOS" | version uint16 | reserved uint16
//	chunk*:  count uint32 | payloadLen uint32 | crc32c uint32 | payload
//
// The payload holds parallel columnar arrays in a fixed order:
// timestamps, task markers, then per hand (left first): valid flags,
// palm positions, palm orientations, palm widths, wrist positions,
// elbow positions, finger joints. Field shapes never change within a
// file; there is no trailer, so a file is valid after any prefix of
// complete chunks.
const (
	magic   = "HPOS"
	version = 1

	fileHeaderSize  = 8
	chunkHeaderSize = 12

	vec3Bytes   = domain.NumCoords * 4
	quatBytes   = 4 * 4
	fingerBytes = domain.NumFingers * domain.NumBones * domain.NumJointEndpoints * vec3Bytes

	// Per-record column widths: valid(1) + palm pos + palm ori +
	// palm width(4) + wrist + elbow + fingers.
	handBytes   = 1 + vec3Bytes + quatBytes + 4 + vec3Bytes + vec3Bytes + fingerBytes
	recordBytes = 8 + 1 + 2*handBytes

	// maxChunkRecords rejects absurd counts from a corrupt chunk header
	// before allocating for the payload.
	maxChunkRecords = 1 << 20
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func chunkChecksum(payload []byte) uint32 {
	return crc32.Checksum(payload, castagnoli)
}

func encodeChunk(recs []domain.FrameRecord) []byte {
	n := len(recs)
	buf := make([]byte, n*recordBytes)
	off := 0

	for i := range recs {
		binary.LittleEndian.PutUint64(buf[off:], uint64(recs[i].Timestamp))
		off += 8
	}
	for i := range recs {
		if recs[i].TaskMarker {
			buf[off] = 1
		}
		off++
	}
	off = encodeHandColumns(buf, off, recs, domain.Left)
	off = encodeHandColumns(buf, off, recs, domain.Right)
	_ = off
	return buf
}

func encodeHandColumns(buf []byte, off int, recs []domain.FrameRecord, s domain.HandSide) int {
	hand := func(i int) *domain.Hand {
		if s == domain.Left {
			return &recs[i].Left
		}
		return &recs[i].Right
	}

	for i := range recs {
		if hand(i).Valid {
			buf[off] = 1
		}
		off++
	}
	for i := range recs {
		off = putVec3(buf, off, hand(i).Pose.PalmPosition)
	}
	for i := range recs {
		off = putQuat(buf, off, hand(i).Pose.PalmOrientation)
	}
	for i := range recs {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(hand(i).Pose.PalmWidth))
		off += 4
	}
	for i := range recs {
		off = putVec3(buf, off, hand(i).Pose.WristPosition)
	}
	for i := range recs {
		off = putVec3(buf, off, hand(i).Pose.ElbowPosition)
	}
	for i := range recs {
		fingers := &hand(i).Pose.Fingers
		for f := range fingers {
			for b := range fingers[f] {
				for j := range fingers[f][b] {
					off = putVec3(buf, off, fingers[f][b][j])
				}
			}
		}
	}
	return off
}

func decodeChunk(buf []byte, n int) []domain.FrameRecord {
	recs := make([]domain.FrameRecord, n)
	off := 0

	for i := range recs {
		recs[i].Timestamp = int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	for i := range recs {
		recs[i].TaskMarker = buf[off] == 1
		off++
	}
	off = decodeHandColumns(buf, off, recs, domain.Left)
	off = decodeHandColumns(buf, off, recs, domain.Right)
	_ = off
	return recs
}

func decodeHandColumns(buf []byte, off int, recs []domain.FrameRecord, s domain.HandSide) int {
	hand := func(i int) *domain.Hand {
		if s == domain.Left {
			return &recs[i].Left
		}
		return &recs[i].Right
	}

	for i := range recs {
		hand(i).Valid = buf[off] == 1
		off++
	}
	for i := range recs {
		off = getVec3(buf, off, &hand(i).Pose.PalmPosition)
	}
	for i := range recs {
		off = getQuat(buf, off, &hand(i).Pose.PalmOrientation)
	}
	for i := range recs {
		hand(i).Pose.PalmWidth = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	for i := range recs {
		off = getVec3(buf, off, &hand(i).Pose.WristPosition)
	}
	for i := range recs {
		off = getVec3(buf, off, &hand(i).Pose.ElbowPosition)
	}
	for i := range recs {
		fingers := &hand(i).Pose.Fingers
		for f := range fingers {
			for b := range fingers[f] {
				for j := range fingers[f][b] {
					off = getVec3(buf, off, &fingers[f][b][j])
				}
			}
		}
	}
	return off
}

func putVec3(buf []byte, off int, v domain.Vec3) int {
	for _, c := range v {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c))
		off += 4
	}
	return off
}

func putQuat(buf []byte, off int, q domain.Quat) int {
	for _, c := range q {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c))
		off += 4
	}
	return off
}

func getVec3(buf []byte, off int, v *domain.Vec3) int {
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return off
}

func getQuat(buf []byte, off int, q *domain.Quat) int {
	for i := range q {
		q[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return off
}
