package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-messenger/internal/types"
)

const messageColumns = "id, conversation_id, sender_id, receiver_id, content, type, status, " +
	"is_delivered, delivered_at, is_read, read_at, is_edited, edited_at, reply_to_id, metadata, " +
	"created_at, updated_at"

func (db *PgMessengerRepository) CreateAccount(params CreateAccountParams) (types.User, error) {
	row := db.conn.QueryRow(
		"INSERT INTO accounts (id, username, email, password_hash) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at, updated_at",
		uuid.NewString(),
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
	)

	var u types.User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (db *PgMessengerRepository) GetAccountById(id string) (*Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)
	return scanAccount(row)
}

func (db *PgMessengerRepository) GetAccountByEmail(email string) (*Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.Id, &a.Username, &a.EmailAddress, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *PgMessengerRepository) FindConversation(id, participantId string) (*types.Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT c.id, c.type, c.name, c.created_by, c.created_at, c.updated_at "+
			"FROM conversations c "+
			"JOIN participants p ON p.conversation_id = c.id "+
			"WHERE c.id = $1 AND p.account_id = $2 LIMIT 1",
		id, participantId,
	)

	var conv types.Conversation
	var createdBy sql.NullString
	err := row.Scan(&conv.Id, &conv.Type, &conv.Name, &createdBy, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedBy = createdBy.String

	participants, err := db.listParticipants(conv.Id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	conv.Participants = participants

	return &conv, nil
}

func (db *PgMessengerRepository) listParticipants(conversationId string) ([]types.User, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email FROM participants p "+
			"JOIN accounts a ON a.id = p.account_id "+
			"WHERE p.conversation_id = $1 ORDER BY a.username",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.Id, &u.Username, &u.EmailAddress); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *PgMessengerRepository) ListConversationsForUser(userId string) ([]types.Conversation, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.type, c.name, c.created_by, c.created_at, c.updated_at "+
			"FROM conversations c "+
			"JOIN participants p ON p.conversation_id = c.id "+
			"WHERE p.account_id = $1 ORDER BY c.updated_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []types.Conversation
	for rows.Next() {
		var conv types.Conversation
		var createdBy sql.NullString
		if err := rows.Scan(&conv.Id, &conv.Type, &conv.Name, &createdBy, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conv.CreatedBy = createdBy.String
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		participants, err := db.listParticipants(convs[i].Id)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		convs[i].Participants = participants
	}

	return convs, nil
}

// FindOrCreateDirectConversation returns the direct conversation for
// the unordered pair (userA, userB), creating it with externalId as its
// id when absent. The ordered pair key makes dedup race-free: a
// concurrent create loses the insert and reads the winner's row.
func (db *PgMessengerRepository) FindOrCreateDirectConversation(externalId, userA, userB string) (types.Conversation, error) {
	key := directKey(userA, userB)

	tx, err := db.conn.Begin()
	if err != nil {
		return types.Conversation{}, err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(
		"INSERT INTO conversations (id, type, created_by, direct_key) "+
			"VALUES ($1, 'direct', $2, $3) "+
			"ON CONFLICT (direct_key) DO NOTHING RETURNING id",
		externalId, userA, key,
	).Scan(&id)
	switch err {
	case nil:
		// Created: attach both participants.
		for _, accountId := range []string{userA, userB} {
			if _, err := tx.Exec(
				"INSERT INTO participants (conversation_id, account_id) VALUES ($1, $2)",
				id, accountId,
			); err != nil {
				return types.Conversation{}, err
			}
		}
	case sql.ErrNoRows:
		// Lost the race or the pair already exists.
		if err := tx.QueryRow(
			"SELECT id FROM conversations WHERE direct_key = $1", key,
		).Scan(&id); err != nil {
			return types.Conversation{}, err
		}
	default:
		return types.Conversation{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Conversation{}, err
	}

	conv, err := db.FindConversation(id, userA)
	if err != nil {
		return types.Conversation{}, err
	}
	if conv == nil {
		return types.Conversation{}, sql.ErrNoRows
	}
	return *conv, nil
}

func directKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

func (db *PgMessengerRepository) CreateGroupConversation(params CreateGroupConversationParams) (types.Conversation, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return types.Conversation{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO conversations (id, type, name, created_by) VALUES ($1, 'group', $2, $3)",
		params.ExternalId, params.Name, params.CreatedBy,
	); err != nil {
		return types.Conversation{}, err
	}

	for _, accountId := range params.ParticipantIds {
		if _, err := tx.Exec(
			"INSERT INTO participants (conversation_id, account_id) VALUES ($1, $2) "+
				"ON CONFLICT DO NOTHING",
			params.ExternalId, accountId,
		); err != nil {
			return types.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Conversation{}, err
	}

	conv, err := db.FindConversation(params.ExternalId, params.CreatedBy)
	if err != nil {
		return types.Conversation{}, err
	}
	if conv == nil {
		return types.Conversation{}, sql.ErrNoRows
	}
	return *conv, nil
}

func (db *PgMessengerRepository) TouchConversation(id string, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE conversations SET updated_at = $2 WHERE id = $1",
		id, at,
	)
	return err
}

func (db *PgMessengerRepository) CreateMessage(params CreateMessageParams) (types.Message, error) {
	var metadata []byte
	if params.Metadata != nil {
		var err error
		metadata, err = json.Marshal(params.Metadata)
		if err != nil {
			return types.Message{}, fmt.Errorf("marshal metadata: %w", err)
		}
	}

	msgType := params.Type
	if msgType == "" {
		msgType = types.MessageText
	}

	var replyTo any
	if params.ReplyToId != "" {
		replyTo = params.ReplyToId
	}

	row := db.conn.QueryRow(
		"INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, type, "+
			"status, is_delivered, delivered_at, reply_to_id, metadata) "+
			"VALUES ($1, $2, $3, $4, $5, $6, 'sent', TRUE, $7, $8, $9) "+
			"RETURNING "+messageColumns,
		uuid.NewString(),
		params.ConversationId,
		params.SenderId,
		params.ReceiverId,
		params.Content,
		msgType,
		params.DeliveredAt,
		replyTo,
		metadata,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return types.Message{}, err
	}
	return *msg, nil
}

func (db *PgMessengerRepository) FindMessage(id string) (*types.Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages WHERE id = $1 LIMIT 1", id,
	)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

func (db *PgMessengerRepository) UpdateMessage(params UpdateMessageParams) (types.Message, error) {
	row := db.conn.QueryRow(
		"UPDATE messages SET "+
			"content = COALESCE($2::text, content), "+
			"is_read = COALESCE($3::boolean, is_read), "+
			"read_at = COALESCE($4::timestamptz, read_at), "+
			"status = CASE WHEN COALESCE($3::boolean, FALSE) THEN 'read' ELSE status END, "+
			"is_edited = COALESCE($5::boolean, is_edited), "+
			"edited_at = COALESCE($6::timestamptz, edited_at), "+
			"updated_at = now() "+
			"WHERE id = $1 RETURNING "+messageColumns,
		params.MessageId,
		params.Content,
		params.IsRead,
		params.ReadAt,
		params.IsEdited,
		params.EditedAt,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return types.Message{}, err
	}
	return *msg, nil
}

func (db *PgMessengerRepository) DeleteMessage(id string) error {
	_, err := db.conn.Exec("DELETE FROM messages WHERE id = $1", id)
	return err
}

func (db *PgMessengerRepository) ListMessages(conversationId string, before time.Time, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE conversation_id = $1 AND created_at < $2 "+
			"ORDER BY created_at DESC LIMIT $3",
		conversationId, before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func (db *PgMessengerRepository) BulkMarkRead(conversationId, receiverId string, at time.Time) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET is_read = TRUE, read_at = $3, status = 'read', updated_at = now() "+
			"WHERE conversation_id = $1 AND receiver_id = $2 AND NOT is_read",
		conversationId, receiverId, at,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *PgMessengerRepository) ToggleReaction(messageId, userId, emoji string) (*types.Reaction, bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"DELETE FROM reactions WHERE message_id = $1 AND account_id = $2 AND emoji = $3",
		messageId, userId, emoji,
	)
	if err != nil {
		return nil, false, err
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	if deleted > 0 {
		// Un-react: the triple existed and is now gone.
		return nil, false, tx.Commit()
	}

	var r types.Reaction
	err = tx.QueryRow(
		"INSERT INTO reactions (id, message_id, account_id, emoji) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, message_id, account_id, emoji, created_at",
		uuid.NewString(), messageId, userId, emoji,
	).Scan(&r.Id, &r.MessageId, &r.UserId, &r.Emoji, &r.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (db *PgMessengerRepository) ListReactions(messageId string) ([]types.Reaction, error) {
	rows, err := db.conn.Query(
		"SELECT id, message_id, account_id, emoji, created_at FROM reactions "+
			"WHERE message_id = $1 ORDER BY created_at",
		messageId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []types.Reaction
	for rows.Next() {
		var r types.Reaction
		if err := rows.Scan(&r.Id, &r.MessageId, &r.UserId, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*types.Message, error) {
	var msg types.Message
	var deliveredAt, readAt, editedAt sql.NullTime
	var replyTo sql.NullString
	var metadata []byte

	err := row.Scan(
		&msg.Id,
		&msg.ConversationId,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Content,
		&msg.Type,
		&msg.Status,
		&msg.IsDelivered,
		&deliveredAt,
		&msg.IsRead,
		&readAt,
		&msg.IsEdited,
		&editedAt,
		&replyTo,
		&metadata,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deliveredAt.Valid {
		msg.DeliveredAt = &deliveredAt.Time
	}
	if readAt.Valid {
		msg.ReadAt = &readAt.Time
	}
	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}
	msg.ReplyToId = replyTo.String

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &msg, nil
}
