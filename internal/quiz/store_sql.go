package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, now: time.Now}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---- users ----

const userCols = `id,full_name,email,role,institution,group_number,photo_url`

func scanUser(sc interface{ Scan(...any) error }, extra ...any) (User, error) {
	var u User
	var role string
	dest := append([]any{&u.ID, &u.FullName, &u.Email, &role, &u.Institution, &u.GroupNumber, &u.PhotoURL}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u User, passwordHash string) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE lower(email)=lower($1)`, u.Email).Scan(&one)
		if err == nil {
			return fmt.Errorf("email %q: %w", u.Email, ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO users (`+userCols+`,password_hash,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.FullName, u.Email, string(u.Role), u.Institution, u.GroupNumber, u.PhotoURL, passwordHash, millis(s.now()))
		return err
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, string, error) {
	var hash string
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+`,password_hash FROM users WHERE lower(email)=lower($1)`, email), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, "", fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return User{}, "", err
	}
	return u, hash, nil
}

// UpdateUser replaces profile fields. Role and email are immutable.
func (s *SQLStore) UpdateUser(ctx context.Context, u User) (User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name=$1, institution=$2, group_number=$3, photo_url=$4 WHERE id=$5`,
		u.FullName, u.Institution, u.GroupNumber, u.PhotoURL, u.ID)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, fmt.Errorf("user %q: %w", u.ID, ErrNotFound)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *SQLStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE 1=1`
	var args []any
	if f.Role != "" {
		args = append(args, string(f.Role))
		q += ` AND role=$` + strconv.Itoa(len(args))
	}
	if f.Institution != "" {
		args = append(args, strings.TrimSpace(f.Institution))
		q += ` AND lower(trim(institution))=lower($` + strconv.Itoa(len(args)) + `)`
	}
	q += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---- groups ----

const groupCols = `id,group_number,specialty,institution,teacher_id,students_json,created_at`

func scanGroup(sc interface{ Scan(...any) error }) (Group, error) {
	var g Group
	var sjson string
	var created int64
	if err := sc.Scan(&g.ID, &g.GroupNumber, &g.Specialty, &g.Institution, &g.TeacherID, &sjson, &created); err != nil {
		return Group{}, err
	}
	if err := json.Unmarshal([]byte(sjson), &g.Students); err != nil {
		return Group{}, fmt.Errorf("group %s students: %w", g.ID, err)
	}
	g.CreatedAt = fromMillis(created)
	return g, nil
}

func (s *SQLStore) ListGroups(ctx context.Context, f GroupFilter) ([]Group, error) {
	q := `SELECT ` + groupCols + ` FROM student_groups`
	var args []any
	if f.TeacherID != "" {
		q += ` WHERE teacher_id=$1`
		args = append(args, f.TeacherID)
	}
	q += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetGroup(ctx context.Context, id string) (Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM student_groups WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, fmt.Errorf("group %q: %w", id, ErrNotFound)
	}
	return g, err
}

func (s *SQLStore) CreateGroup(ctx context.Context, g Group) (Group, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CreatedAt = fromMillis(millis(s.now()))
	sj, err := json.Marshal(studentsOrEmpty(g.Students))
	if err != nil {
		return Group{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO student_groups (`+groupCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		g.ID, g.GroupNumber, g.Specialty, g.Institution, g.TeacherID, string(sj), millis(g.CreatedAt))
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *SQLStore) UpdateGroup(ctx context.Context, g Group) (Group, error) {
	sj, err := json.Marshal(studentsOrEmpty(g.Students))
	if err != nil {
		return Group{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE student_groups SET group_number=$1, specialty=$2, institution=$3, teacher_id=$4, students_json=$5 WHERE id=$6`,
		g.GroupNumber, g.Specialty, g.Institution, g.TeacherID, string(sj), g.ID)
	if err != nil {
		return Group{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Group{}, fmt.Errorf("group %q: %w", g.ID, ErrNotFound)
	}
	return s.GetGroup(ctx, g.ID)
}

func (s *SQLStore) DeleteGroup(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM student_groups WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("group %q: %w", id, ErrNotFound)
		}
		testIDs, err := collectStrings(ctx, tx, `SELECT test_id FROM test_groups WHERE group_id=$1`, id)
		if err != nil {
			return err
		}
		for _, tid := range testIDs {
			if err := deleteTest(ctx, tx, tid); err != nil {
				return err
			}
		}
		return nil
	})
}

func studentsOrEmpty(s []GroupStudent) []GroupStudent {
	if s == nil {
		return []GroupStudent{}
	}
	return s
}

// ---- tests ----

const testCols = `t.id,t.title,t.subject,t.description,t.teacher_id,t.time_limit,t.max_attempts,
	t.start_date,t.end_date,t.randomize_questions,t.questions_json,t.created_at`

func scanTest(sc interface{ Scan(...any) error }) (Test, error) {
	var t Test
	var start, end, created int64
	var randomize int
	var qjson string
	if err := sc.Scan(&t.ID, &t.Title, &t.Subject, &t.Description, &t.TeacherID, &t.TimeLimit, &t.MaxAttempts,
		&start, &end, &randomize, &qjson, &created); err != nil {
		return Test{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &t.Questions); err != nil {
		return Test{}, fmt.Errorf("test %s questions: %w", t.ID, err)
	}
	t.StartDate, t.EndDate, t.CreatedAt = fromMillis(start), fromMillis(end), fromMillis(created)
	t.RandomizeQuestions = randomize != 0
	return t, nil
}

func (s *SQLStore) ListTests(ctx context.Context, f TestFilter) ([]Test, error) {
	q := `SELECT ` + testCols + ` FROM tests t`
	var args []any
	if f.GroupID != "" {
		args = append(args, f.GroupID)
		q += ` JOIN test_groups g ON g.test_id=t.id AND g.group_id=$1`
	}
	q += ` WHERE 1=1`
	if f.TeacherID != "" {
		args = append(args, f.TeacherID)
		q += ` AND t.teacher_id=$` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY t.created_at, t.id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
	// rows must be closed first: sqlite runs on a single connection
	for i := range out {
		if out[i].GroupIDs, err = testGroupIDs(ctx, s.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	t, err := scanTest(s.db.QueryRowContext(ctx, `SELECT `+testCols+` FROM tests t WHERE t.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, fmt.Errorf("test %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Test{}, err
	}
	t.GroupIDs, err = testGroupIDs(ctx, s.db, id)
	return t, err
}

func (s *SQLStore) CreateTest(ctx context.Context, t Test) (Test, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = fromMillis(millis(s.now()))
	qj, err := json.Marshal(questionsOrEmpty(t.Questions))
	if err != nil {
		return Test{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tests
			(id,title,subject,description,teacher_id,time_limit,max_attempts,start_date,end_date,randomize_questions,questions_json,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			t.ID, t.Title, t.Subject, t.Description, t.TeacherID, t.TimeLimit, t.MaxAttempts,
			millis(t.StartDate), millis(t.EndDate), boolInt(t.RandomizeQuestions), string(qj), millis(t.CreatedAt))
		if err != nil {
			return err
		}
		return putTestGroups(ctx, tx, t.ID, t.GroupIDs)
	})
	if err != nil {
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) UpdateTest(ctx context.Context, t Test) (Test, error) {
	qj, err := json.Marshal(questionsOrEmpty(t.Questions))
	if err != nil {
		return Test{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tests SET title=$1, subject=$2, description=$3, teacher_id=$4,
			time_limit=$5, max_attempts=$6, start_date=$7, end_date=$8, randomize_questions=$9, questions_json=$10
			WHERE id=$11`,
			t.Title, t.Subject, t.Description, t.TeacherID, t.TimeLimit, t.MaxAttempts,
			millis(t.StartDate), millis(t.EndDate), boolInt(t.RandomizeQuestions), string(qj), t.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("test %q: %w", t.ID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM test_groups WHERE test_id=$1`, t.ID); err != nil {
			return err
		}
		return putTestGroups(ctx, tx, t.ID, t.GroupIDs)
	})
	if err != nil {
		return Test{}, err
	}
	return s.GetTest(ctx, t.ID)
}

func (s *SQLStore) DeleteTest(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id=$1`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("test %q: %w", id, ErrNotFound)
			}
			return err
		}
		return deleteTest(ctx, tx, id)
	})
}

func deleteTest(ctx context.Context, q querier, id string) error {
	for _, stmt := range []string{
		`DELETE FROM test_results WHERE test_id=$1`,
		`DELETE FROM test_groups WHERE test_id=$1`,
		`DELETE FROM tests WHERE id=$1`,
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

func putTestGroups(ctx context.Context, q querier, testID string, groupIDs []string) error {
	seen := map[string]bool{}
	pos := 0
	for _, gid := range groupIDs {
		if gid == "" || seen[gid] {
			continue
		}
		seen[gid] = true
		if _, err := q.ExecContext(ctx, `INSERT INTO test_groups (test_id,group_id,position) VALUES ($1,$2,$3)`,
			testID, gid, pos); err != nil {
			return err
		}
		pos++
	}
	return nil
}

func testGroupIDs(ctx context.Context, q querier, testID string) ([]string, error) {
	ids, err := collectStrings(ctx, q, `SELECT group_id FROM test_groups WHERE test_id=$1 ORDER BY position`, testID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func collectStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func questionsOrEmpty(q []Question) []Question {
	if q == nil {
		return []Question{}
	}
	return q
}

// ---- results ----

const resultCols = `id,test_id,student_id,answers_json,score,max_score,completed_at`

func scanResult(sc interface{ Scan(...any) error }) (TestResult, error) {
	var r TestResult
	var ajson string
	var completed int64
	if err := sc.Scan(&r.ID, &r.TestID, &r.StudentID, &ajson, &r.Score, &r.MaxScore, &completed); err != nil {
		return TestResult{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &r.Answers); err != nil {
		return TestResult{}, fmt.Errorf("result %s answers: %w", r.ID, err)
	}
	r.CompletedAt = fromMillis(completed)
	return r, nil
}

func (s *SQLStore) ListResults(ctx context.Context, f ResultFilter) ([]TestResult, error) {
	q := `SELECT ` + resultCols + ` FROM test_results WHERE 1=1`
	var args []any
	if f.TestID != "" {
		args = append(args, f.TestID)
		q += ` AND test_id=$` + strconv.Itoa(len(args))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		q += ` AND student_id=$` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY completed_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TestResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (TestResult, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultCols+` FROM test_results WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TestResult{}, fmt.Errorf("result %q: %w", id, ErrNotFound)
	}
	return r, err
}

func (s *SQLStore) AppendResult(ctx context.Context, r TestResult) (TestResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = s.now()
	}
	r.CompletedAt = fromMillis(millis(r.CompletedAt))
	if r.Answers == nil {
		r.Answers = map[string]Answer{}
	}
	aj, err := json.Marshal(r.Answers)
	if err != nil {
		return TestResult{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id=$1`, r.TestID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("test %q: %w", r.TestID, ErrNotFound)
			}
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO test_results (`+resultCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			r.ID, r.TestID, r.StudentID, string(aj), r.Score, r.MaxScore, millis(r.CompletedAt))
		return err
	})
	if err != nil {
		return TestResult{}, err
	}
	return r, nil
}
