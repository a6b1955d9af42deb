// Package bio provides the amino acid alphabet and FASTA reading.
package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Residue is an amino acid type. Residues are numbered in the
// alphabetical order of their three-letter codes, so they can be used
// as array indices directly.
type Residue int8

// Amino acids.
const (
	ALA Residue = iota
	ARG
	ASN
	ASP
	CYS
	GLN
	GLU
	GLY
	HIS
	ILE
	LEU
	LYS
	MET
	PHE
	PRO
	SER
	THR
	TRP
	TYR
	VAL
)

// NResidue is the number of residue types.
const NResidue = 20

var (
	threeLetter = [NResidue]string{
		"ALA", "ARG", "ASN", "ASP", "CYS", "GLN", "GLU", "GLY", "HIS", "ILE",
		"LEU", "LYS", "MET", "PHE", "PRO", "SER", "THR", "TRP", "TYR", "VAL"}
	oneLetter = [NResidue]byte{
		'A', 'R', 'N', 'D', 'C', 'Q', 'E', 'G', 'H', 'I',
		'L', 'K', 'M', 'F', 'P', 'S', 'T', 'W', 'Y', 'V'}

	// byLetter maps one-letter codes to residues, -1 for unknown
	// letters.
	byLetter [256]Residue
)

// ErrUnknownResidue is returned for tokens outside of the alphabet.
var ErrUnknownResidue = errors.New("unknown residue")

func init() {
	for i := range byLetter {
		byLetter[i] = -1
	}
	for r, l := range oneLetter {
		byLetter[l] = Residue(r)
	}
}

// String returns the three-letter code.
func (r Residue) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Residue(%d)", int(r))
	}
	return threeLetter[r]
}

// Letter returns the one-letter code, X for invalid residues.
func (r Residue) Letter() byte {
	if !r.Valid() {
		return 'X'
	}
	return oneLetter[r]
}

// Valid returns true if r is one of the 20 amino acids.
func (r Residue) Valid() bool {
	return r >= 0 && r < NResidue
}

// ParseResidue converts a one-letter or a three-letter code
// (case-insensitive) into a Residue.
func ParseResidue(token string) (Residue, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	switch len(t) {
	case 1:
		if r := byLetter[t[0]]; r >= 0 {
			return r, nil
		}
	case 3:
		for r, name := range threeLetter {
			if name == t {
				return Residue(r), nil
			}
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownResidue, token)
}

// Residues is a protein sequence.
type Residues []Residue

// Translate converts a one-letter protein string into residues.
func Translate(s string) (Residues, error) {
	res := make(Residues, 0, len(s))
	for i := 0; i < len(s); i++ {
		r := byLetter[s[i]]
		if r < 0 {
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownResidue, s[i], i+1)
		}
		res = append(res, r)
	}
	return res, nil
}

// String returns the one-letter representation.
func (rs Residues) String() string {
	b := make([]byte, len(rs))
	for i, r := range rs {
		b[i] = r.Letter()
	}
	return string(b)
}

// ThreeLetter returns the three-letter codes of all the residues.
func (rs Residues) ThreeLetter() []string {
	s := make([]string, len(rs))
	for i, r := range rs {
		s[i] = r.String()
	}
	return s
}

// Sequence is a type which is intended for storing a protein
// sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences.
type Sequences []Sequence

// Residues translates the sequence into residues.
func (seq Sequence) Residues() (Residues, error) {
	return Translate(seq.Sequence)
}

// ParseFasta parses FASTA sequences from a reader.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seq := Sequence{Name: line[1:]}
			seqs = append(seqs, seq)
		} else {
			if len(seqs) == 0 {
				return nil, errors.New("sequence w/o prefix")
			}
			line = strings.ToUpper(strings.Replace(line, " ", "", -1))
			seqs[len(seqs)-1].Sequence += line
		}
	}
	return seqs, scanner.Err()
}

// LineWidth is the number of residues per line in FASTA output.
const LineWidth = 60

// String returns the sequence as a FASTA record.
func (seq Sequence) String() string {
	var b strings.Builder
	b.WriteString(">" + seq.Name + "\n")
	for s := seq.Sequence; len(s) > 0; {
		n := LineWidth
		if n > len(s) {
			n = len(s)
		}
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	return b.String()
}
