package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	"github.com/mqy/minichat/model"
)

const (
	// MaxListMessages bounds the history loaded into the hub.
	MaxListMessages = 1000

	// MaxDocBytes bounds the text and data URIs of one document, the columns are MEDIUMTEXT.
	MaxDocBytes = 16 << 20
)

const (
	insertMessageSQL = "INSERT INTO messages " +
		"(id,topic_partition,topic_offset,create_time,sender_id,sender_name,sender_color,sender_photo,text,image_data) " +
		"VALUES (?,?,?,?,?,?,?,?,?,?)"
	getMessageByOffsetSQL = "SELECT id,create_time FROM messages WHERE topic_partition=? AND topic_offset=?"
	listMessagesSQL       = "SELECT id,create_time,sender_id,sender_name,sender_color,sender_photo,text,image_data " +
		"FROM messages ORDER BY create_time DESC, id DESC LIMIT ?"

	lockProfileSQL   = "SELECT display_name,theme_color,photo_data FROM profiles WHERE identity=? FOR UPDATE"
	insertProfileSQL = "INSERT INTO profiles (identity,display_name,theme_color,photo_data,update_time) VALUES (?,?,?,?,?)"
	updateProfileSQL = "UPDATE profiles SET display_name=?,theme_color=?,photo_data=?,update_time=? WHERE identity=?"
	listProfilesSQL  = "SELECT identity,display_name,theme_color,photo_data FROM profiles"
)

// docStore implements interface `IDocStore`.
type docStore struct {
	*sql.DB
}

func NewDocStore(db *sql.DB) *docStore {
	return &docStore{db}
}

func (s *docStore) withTx(ctx context.Context, exec func(ctx context.Context, tx *sql.Tx) error, opts ...*sql.TxOptions) error {
	var txOpts *sql.TxOptions
	if len(opts) == 0 {
		txOpts = &sql.TxOptions{
			Isolation: sql.LevelRepeatableRead,
			ReadOnly:  false,
		}
	} else {
		txOpts = opts[0]
	}
	tx, err := s.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	if err := exec(ctx, tx); err != nil {
		err2 := tx.Rollback()
		if err2 != nil {
			glog.Errorf("failed to rollback: %v", err2)
		}
		return err
	}

	return tx.Commit()
}

func (s *docStore) IsDupKeyError(err error) bool {
	if val, ok := err.(*mysql.MySQLError); ok {
		return val.Number == 1062
	}
	return false
}

func (s *docStore) SaveMessage(ctx context.Context, partition int, offset int64, m *model.Message) error {
	if m.ID == "" || m.CreatedAt == nil {
		return fmt.Errorf("store: message without id or created time")
	}
	if len(m.Text)+len(m.ImageData)+len(m.SenderPhoto) > MaxDocBytes {
		return ErrTooLarge
	}
	createTime := toMillis(*m.CreatedAt)

	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertMessageSQL, m.ID, partition, offset, createTime, m.SenderID,
			nullString(m.SenderName), nullString(m.SenderColor), nullString(m.SenderPhoto),
			m.Text, nullString(m.ImageData))
		if err == nil {
			return nil
		}
		// Duplicate key error MUST be caused by failure of commit kafka message.
		if s.IsDupKeyError(err) {
			var id string
			var t time.Time
			row := tx.QueryRowContext(ctx, getMessageByOffsetSQL, partition, offset)
			if err := row.Scan(&id, &t); err != nil {
				glog.Errorf("get message error, partition: %d, offset: %d, err: %v", partition, offset, err)
			} else if id == m.ID && sameMillis(t, createTime) {
				glog.V(5).Infof("store: message %s at %d/%d was saved", id, partition, offset)
				return nil
			}
		}
		return err
	})
}

func (s *docStore) ListMessages(ctx context.Context, limit int) ([]*model.Message, error) {
	var out []*model.Message
	if err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, listMessagesSQL, clampLimit(limit))
		if err != nil {
			glog.Errorf("list messages query err: %v", err)
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m model.Message
			var t time.Time
			var name, color, photo, image sql.NullString
			if err := rows.Scan(&m.ID, &t, &m.SenderID, &name, &color, &photo, &m.Text, &image); err != nil {
				glog.Errorf("list messages scan err: %v", err)
				return err
			}
			t = t.UTC()
			m.CreatedAt = &t
			m.SenderName, m.SenderColor, m.SenderPhoto, m.ImageData = name.String, color.String, photo.String, image.String
			out = append(out, &m)
		}
		return rows.Err()
	}, &sql.TxOptions{ReadOnly: true}); err != nil {
		return nil, err
	}

	// query is newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *docStore) UpsertProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	if p.Identity == "" {
		return nil, fmt.Errorf("store: profile without identity")
	}
	if len(p.PhotoData) > MaxDocBytes {
		return nil, ErrTooLarge
	}

	var out *model.Profile
	if err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var name, color, photo sql.NullString
		row := tx.QueryRowContext(ctx, lockProfileSQL, p.Identity)
		err := row.Scan(&name, &color, &photo)
		if err != nil && err != sql.ErrNoRows {
			glog.Errorf("lock profile scan err: %v", err)
			return err
		}

		now := time.Now()
		if err == sql.ErrNoRows {
			out = p.Clone()
			_, err = tx.ExecContext(ctx, insertProfileSQL, out.Identity,
				nullString(out.DisplayName), nullString(out.ThemeColor), nullString(out.PhotoData), now)
			return err
		}

		out = &model.Profile{
			Identity:    p.Identity,
			DisplayName: name.String,
			ThemeColor:  color.String,
			PhotoData:   photo.String,
		}
		out.Merge(p)
		_, err = tx.ExecContext(ctx, updateProfileSQL,
			nullString(out.DisplayName), nullString(out.ThemeColor), nullString(out.PhotoData), now, out.Identity)
		return err
	}, &sql.TxOptions{Isolation: sql.LevelSerializable}); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *docStore) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	rows, err := s.QueryContext(ctx, listProfilesSQL)
	if err != nil {
		glog.Errorf("list profiles query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []*model.Profile
	for rows.Next() {
		var p model.Profile
		var name, color, photo sql.NullString
		if err := rows.Scan(&p.Identity, &name, &color, &photo); err != nil {
			glog.Errorf("list profiles scan err: %v", err)
			return nil, err
		}
		p.DisplayName, p.ThemeColor, p.PhotoData = name.String, color.String, photo.String
		out = append(out, &p)
	}
	return out, rows.Err()
}
