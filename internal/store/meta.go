package store

import (
	"errors"

	"appletree/internal/model"
)

// DocumentMeta returns the allow-listed metadata of a document. Absent or unreadable meta
// files yield an empty map.
func (s Store) DocumentMeta(id string) (model.Meta, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	path := s.metaPath(id)
	values, _, err := ReadConf(path, metaSection)
	if err != nil {
		if errors.Is(err, ErrIO) {
			return nil, s.ioFail("read document meta", err, "doc", id, "path", path)
		}
		s.log().Warn("malformed document meta, ignoring", "doc", id, "path", path, "error", err)
		return model.Meta{}, nil
	}
	return model.Meta(values).Filtered(), nil
}

// PutDocumentMeta replaces the metadata file. Keys outside the allow-list are dropped.
func (s Store) PutDocumentMeta(id string, meta model.Meta) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.ensureDocumentFolder(id); err != nil {
		return err
	}
	path := s.metaPath(id)
	if err := WriteConf(path, metaSection, model.MetaKeys(), meta.Filtered()); err != nil {
		return s.ioFail("write document meta", err, "doc", id, "path", path)
	}
	return nil
}

// UpdateDocumentMeta merges partial into the stored metadata.
func (s Store) UpdateDocumentMeta(id string, partial model.Meta) error {
	cur, err := s.DocumentMeta(id)
	if err != nil {
		return err
	}
	for k, v := range partial.Filtered() {
		cur[k] = v
	}
	return s.PutDocumentMeta(id, cur)
}
