package memory

import (
	"bytes"
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"insightdeck/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Sandbox backend errors.
var (
	ErrAccountExists      = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrNotVerified        = errors.New("please verify your email first")
	ErrAccountNotFound    = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrFileNotFound       = errors.New("file not found")
	ErrNotProcessed       = errors.New("processed data not found, process the file first")
	ErrNoCredits          = errors.New("insufficient credits")
)

// InitialCredits is the free tier granted when an email is verified.
const InitialCredits = 10 * domain.UnitsPerCredit

// CodeTTL is how long a verification or reset code stays valid.
const CodeTTL = 15 * time.Minute

// Code purposes.
const (
	PurposeVerify = "email_verification"
	PurposeReset  = "password_reset"
)

// Account is a sandbox user.
type Account struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	Verified     bool
	Balance      int64
	CreatedAt    time.Time
}

// User returns the public identity record.
func (a *Account) User() *domain.User {
	return &domain.User{Email: a.Email, FullName: a.FullName, Role: a.Role}
}

type code struct {
	value     string
	expiresAt time.Time
}

type file struct {
	info    domain.FileInfo
	owner   string
	content []byte
}

// Backend is the in-memory state of the sandbox API.
type Backend struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*Account // by email
	codes    map[string]code     // by purpose + ":" + email
	files    map[string]*file
	results  map[string]*domain.ProcessingResult
}

// NewBackend creates an empty sandbox backend.
func NewBackend() *Backend {
	return &Backend{
		now:      time.Now,
		accounts: make(map[string]*Account),
		codes:    make(map[string]code),
		files:    make(map[string]*file),
		results:  make(map[string]*domain.ProcessingResult),
	}
}

// CreateAccount registers an unverified account.
func (b *Backend) CreateAccount(email, fullName, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(email)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.accounts[email]; ok {
		return nil, ErrAccountExists
	}
	a := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		Role:         "user",
		PasswordHash: string(hash),
		CreatedAt:    b.now().UTC(),
	}
	b.accounts[email] = a
	return a, nil
}

// Authenticate checks credentials of a verified account.
func (b *Backend) Authenticate(email, password string) (*Account, error) {
	a, err := b.account(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !a.Verified {
		return nil, ErrNotVerified
	}
	return a, nil
}

// AccountByID looks up an account by id.
func (b *Backend) AccountByID(id string) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

// Account looks up an account by email.
func (b *Backend) Account(email string) (*Account, error) {
	return b.account(email)
}

func (b *Backend) account(email string) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// IssueCode creates a fresh 6-digit code for email, replacing any previous
// code of the same purpose.
func (b *Backend) IssueCode(email, purpose string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	value := fmt.Sprintf("%06d", n.Int64())

	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[purpose+":"+strings.ToLower(email)] = code{value: value, expiresAt: b.now().Add(CodeTTL)}
	return value, nil
}

// CheckCode validates a code. When consume is true a valid code is removed.
func (b *Backend) CheckCode(email, purpose, value string, consume bool) error {
	key := purpose + ":" + strings.ToLower(email)

	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.codes[key]
	if !ok || c.value != value || b.now().After(c.expiresAt) {
		return ErrInvalidCode
	}
	if consume {
		delete(b.codes, key)
	}
	return nil
}

// MarkVerified verifies an account and grants the free tier once.
func (b *Backend) MarkVerified(email string) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if !a.Verified {
		a.Verified = true
		a.Balance += InitialCredits
	}
	cp := *a
	return &cp, nil
}

// GoogleAccount returns the account for email, creating a verified one with
// the free tier and an unusable random password when none exists.
func (b *Backend) GoogleAccount(email, fullName string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(email)

	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[email]
	if !ok {
		a = &Account{
			ID:           uuid.NewString(),
			Email:        email,
			FullName:     fullName,
			Role:         "user",
			PasswordHash: string(hash),
			Verified:     true,
			Balance:      InitialCredits,
			CreatedAt:    b.now().UTC(),
		}
		b.accounts[email] = a
	}
	cp := *a
	return &cp, nil
}

// SetPassword replaces the password of an account.
func (b *Backend) SetPassword(email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[strings.ToLower(email)]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = string(hash)
	return nil
}

// Balance returns the raw credit balance of an account.
func (b *Backend) Balance(accountID string) (int64, error) {
	a, err := b.AccountByID(accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Charge deducts units from an account's balance.
func (b *Backend) Charge(accountID string, units int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.ID != accountID {
			continue
		}
		if a.Balance < units {
			return ErrNoCredits
		}
		a.Balance -= units
		return nil
	}
	return ErrAccountNotFound
}

// AddFile stores an uploaded file.
func (b *Backend) AddFile(owner, filename string, r io.Reader) (*domain.FileInfo, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	info := domain.FileInfo{
		FileID:           id,
		Filename:         id + "." + ext,
		OriginalFilename: filepath.Base(filename),
		FileSize:         int64(len(content)),
		FileType:         ext,
		Status:           "uploaded",
		UploadedAt:       b.now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[id] = &file{info: info, owner: owner, content: content}
	return &info, nil
}

// File returns the upload record of a file owned by owner.
func (b *Backend) File(owner, id string) (*domain.FileInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[id]
	if !ok || f.owner != owner {
		return nil, ErrFileNotFound
	}
	info := f.info
	return &info, nil
}

// Files lists the files of owner, newest first.
func (b *Backend) Files(owner string) []domain.FileInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.FileInfo, 0, len(b.files))
	for _, f := range b.files {
		if f.owner == owner {
			out = append(out, f.info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// DeleteFile removes a file and its processing result.
func (b *Backend) DeleteFile(owner, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[id]
	if !ok || f.owner != owner {
		return ErrFileNotFound
	}
	delete(b.files, id)
	delete(b.results, id)
	return nil
}

// Process extracts the content of a file. CSV files become one dataframe,
// everything else is treated as text.
func (b *Backend) Process(owner, id string) (*domain.ProcessingResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[id]
	if !ok || f.owner != owner {
		return nil, ErrFileNotFound
	}
	if r, ok := b.results[id]; ok {
		return r, nil
	}

	res := &domain.ProcessingResult{
		FileID:   id,
		Filename: f.info.OriginalFilename,
		FileType: f.info.FileType,
		Success:  true,
	}
	if f.info.FileType == "csv" {
		df, err := parseCSV(f.content)
		if err != nil {
			f.info.Status = "failed"
			return nil, fmt.Errorf("process %s: %w", id, err)
		}
		df.SheetName = "Sheet_1"
		res.Dataframes = []domain.Dataframe{df}
		res.TotalRows = df.Rows
		res.TotalColumns = df.Columns
	} else {
		res.TextContent = string(f.content)
	}

	now := b.now().UTC()
	f.info.Status = "completed"
	f.info.ProcessedAt = &now
	b.results[id] = res
	return res, nil
}

// Result returns the processing result of a file.
func (b *Backend) Result(owner, id string) (*domain.ProcessingResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[id]
	if !ok || f.owner != owner {
		return nil, ErrFileNotFound
	}
	r, ok := b.results[id]
	if !ok {
		return nil, ErrNotProcessed
	}
	return r, nil
}

func parseCSV(content []byte) (domain.Dataframe, error) {
	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	if err != nil {
		return domain.Dataframe{}, err
	}
	if len(records) == 0 {
		return domain.Dataframe{}, errors.New("empty csv")
	}
	header := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return domain.Dataframe{
		Rows:        len(rows),
		Columns:     len(header),
		ColumnNames: header,
		Data:        rows,
	}, nil
}
