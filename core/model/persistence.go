package model

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
//	err := model.SaveModel(snapshot, "gp.gob")
//
// The file is written to a temporary sibling and renamed into place, so a
// failed save never leaves a truncated model behind.
func SaveModel(model interface{}, filename string) (err error) {
	tmp := filename + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(file)
	if err = SaveModelToWriter(model, w); err != nil {
		_ = file.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "failed to flush model file")
	}
	if err = file.Close(); err != nil {
		return errors.Wrap(err, "failed to close model file")
	}
	return errors.Wrap(os.Rename(tmp, filename), "failed to move model file into place")
}

// LoadModel はファイルからモデルを読み込む
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open model file")
	}
	defer file.Close()

	return LoadModelFromReader(model, bufio.NewReader(file))
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
