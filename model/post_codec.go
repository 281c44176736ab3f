package model

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedPost is returned for blobs or posts that violate the post
// schema: a wrong wire type for a known field, truncated data, or a missing
// primary key.
var ErrMalformedPost = errors.New("malformed post")

// postField binds a protobuf field number to one Post attribute. Exactly one
// of the int or string accessor pairs is set, matching wireType.
type postField struct {
	num      protowire.Number
	wireType protowire.Type
	getInt   func(*Post) int64
	setInt   func(*Post, int64)
	getStr   func(*Post) string
	setStr   func(*Post, string)
}

func intField(num protowire.Number, get func(*Post) int64, set func(*Post, int64)) postField {
	return postField{num: num, wireType: protowire.VarintType, getInt: get, setInt: set}
}

func strField(num protowire.Number, get func(*Post) string, set func(*Post, string)) postField {
	return postField{num: num, wireType: protowire.BytesType, getStr: get, setStr: set}
}

// Field numbers are part of the on-disk format. Keep the table in ascending
// order and append new fields with new numbers, never renumber.
var postSchema = []postField{
	intField(1, func(p *Post) int64 { return p.No }, func(p *Post, v int64) { p.No = v }),
	strField(2, func(p *Post) string { return p.Board }, func(p *Post, v string) { p.Board = v }),
	intField(3, func(p *Post) int64 { return p.Resto }, func(p *Post, v int64) { p.Resto = v }),
	intField(4, func(p *Post) int64 { return p.Time }, func(p *Post, v int64) { p.Time = v }),
	strField(5, func(p *Post) string { return p.Now }, func(p *Post, v string) { p.Now = v }),
	strField(6, func(p *Post) string { return p.Name }, func(p *Post, v string) { p.Name = v }),
	strField(7, func(p *Post) string { return p.Sub }, func(p *Post, v string) { p.Sub = v }),
	strField(8, func(p *Post) string { return p.Com }, func(p *Post, v string) { p.Com = v }),
	strField(9, func(p *Post) string { return p.Filename }, func(p *Post, v string) { p.Filename = v }),
	strField(10, func(p *Post) string { return p.Ext }, func(p *Post, v string) { p.Ext = v }),
	intField(11, func(p *Post) int64 { return int64(p.W) }, func(p *Post, v int64) { p.W = int(v) }),
	intField(12, func(p *Post) int64 { return int64(p.H) }, func(p *Post, v int64) { p.H = int(v) }),
	intField(13, func(p *Post) int64 { return int64(p.TnW) }, func(p *Post, v int64) { p.TnW = int(v) }),
	intField(14, func(p *Post) int64 { return int64(p.TnH) }, func(p *Post, v int64) { p.TnH = int(v) }),
	intField(15, func(p *Post) int64 { return p.Tim }, func(p *Post, v int64) { p.Tim = v }),
	strField(16, func(p *Post) string { return p.Md5 }, func(p *Post, v string) { p.Md5 = v }),
	intField(17, func(p *Post) int64 { return p.Fsize }, func(p *Post, v int64) { p.Fsize = v }),
	strField(18, func(p *Post) string { return p.Capcode }, func(p *Post, v string) { p.Capcode = v }),
	strField(19, func(p *Post) string { return p.SemanticURL }, func(p *Post, v string) { p.SemanticURL = v }),
	intField(20, func(p *Post) int64 { return int64(p.Replies) }, func(p *Post, v int64) { p.Replies = int(v) }),
	intField(21, func(p *Post) int64 { return int64(p.Images) }, func(p *Post, v int64) { p.Images = int(v) }),
	intField(22, func(p *Post) int64 { return int64(p.UniqueIPs) }, func(p *Post, v int64) { p.UniqueIPs = int(v) }),
}

var postFieldsByNum = func() map[protowire.Number]postField {
	m := make(map[protowire.Number]postField, len(postSchema))
	for _, f := range postSchema {
		m[f.num] = f
	}
	return m
}()

func validatePostKey(p *Post) error {
	if p.No == 0 || p.Board == "" {
		return errors.Wrapf(ErrMalformedPost, "missing primary key (board=%q, no=%d)", p.Board, p.No)
	}
	return nil
}

// EncodePost serializes p in protobuf wire format. Fields are emitted in
// ascending field number and zero values are omitted, so the output for a
// given post is deterministic. LastFetched and OpThread are not encoded.
func EncodePost(p *Post) ([]byte, error) {
	if err := validatePostKey(p); err != nil {
		return nil, err
	}
	var b []byte
	for _, f := range postSchema {
		switch f.wireType {
		case protowire.VarintType:
			v := f.getInt(p)
			if v == 0 {
				continue
			}
			b = protowire.AppendTag(b, f.num, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(v))
		case protowire.BytesType:
			v := f.getStr(p)
			if v == "" {
				continue
			}
			b = protowire.AppendTag(b, f.num, protowire.BytesType)
			b = protowire.AppendString(b, v)
		}
	}
	return b, nil
}

// DecodePost parses a blob produced by EncodePost. Unknown field numbers are
// skipped so older binaries can read rows written by newer ones.
func DecodePost(data []byte) (*Post, error) {
	p := &Post{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrapf(ErrMalformedPost, "tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		f, known := postFieldsByNum[num]
		if !known {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformedPost, "field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if typ != f.wireType {
			return nil, errors.Wrapf(ErrMalformedPost, "field %d: wire type %d, want %d", num, typ, f.wireType)
		}

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformedPost, "field %d: %v", num, protowire.ParseError(n))
			}
			f.setInt(p, int64(v))
			data = data[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformedPost, "field %d: %v", num, protowire.ParseError(n))
			}
			f.setStr(p, v)
			data = data[n:]
		}
	}
	if err := validatePostKey(p); err != nil {
		return nil, err
	}
	return p, nil
}
