package models

import "time"

type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindTimeout           ErrorKind = "Timeout"
	KindProvider          ErrorKind = "ProviderError"
	KindNetwork           ErrorKind = "NetworkError"
	KindMalformedResponse ErrorKind = "MalformedResponse"
	KindConfiguration     ErrorKind = "ConfigurationError"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// MaxRecommendationsPerSection bounds every recommendations list.
const MaxRecommendationsPerSection = 6

type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// AnalysisRequest pairs one prepared image with the instruction sent to the
// provider. Fields are read-only once built.
type AnalysisRequest struct {
	input       ImageInput
	instruction string
}

func NewAnalysisRequest(input ImageInput, instruction string) AnalysisRequest {
	data := make([]byte, len(input.Data))
	copy(data, input.Data)
	input.Data = data

	return AnalysisRequest{input: input, instruction: instruction}
}

func (r AnalysisRequest) Index() int          { return r.input.Index }
func (r AnalysisRequest) Filename() string    { return r.input.Filename }
func (r AnalysisRequest) MIMEType() string    { return r.input.MIMEType }
func (r AnalysisRequest) Instruction() string { return r.instruction }

// Image returns a copy of the encoded image bytes.
func (r AnalysisRequest) Image() []byte {
	out := make([]byte, len(r.input.Data))
	copy(out, r.input.Data)
	return out
}

type Recommendations struct {
	DIYIdeas               []string `json:"diy_ideas"`
	Monetization           []string `json:"monetization"`
	Sustainability         []string `json:"sustainability"`
	Tutorials              []string `json:"tutorials"`
	MarketplaceSuggestions []string `json:"marketplace_suggestions"`
}

func EmptyRecommendations() Recommendations {
	return Recommendations{
		DIYIdeas:               []string{},
		Monetization:           []string{},
		Sustainability:         []string{},
		Tutorials:              []string{},
		MarketplaceSuggestions: []string{},
	}
}

func (r Recommendations) IsEmpty() bool {
	return len(r.DIYIdeas) == 0 &&
		len(r.Monetization) == 0 &&
		len(r.Sustainability) == 0 &&
		len(r.Tutorials) == 0 &&
		len(r.MarketplaceSuggestions) == 0
}

// AnalysisSections holds the light structuring of the provider's text.
// Missing sections stay empty.
type AnalysisSections struct {
	Identification    string `json:"identification"`
	Materials         string `json:"materials"`
	Condition         string `json:"condition"`
	Size              string `json:"size"`
	Style             string `json:"style"`
	Value             string `json:"value"`
	CreativePotential string `json:"creative_potential"`
}

type Analysis struct {
	ID              string           `json:"id"`
	Text            string           `json:"text"`
	Sections        AnalysisSections `json:"sections"`
	Recommendations Recommendations  `json:"recommendations"`
	Category        string           `json:"category"`
	Confidence      int              `json:"confidence"`
	Model           string           `json:"model"`
	ImageInfo       *ImageInfo       `json:"image_info,omitempty"`
	Cached          bool             `json:"cached"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// AnalysisResult is either a success carrying Analysis or a failure carrying
// Error. Use the constructors so exactly one payload is set.
type AnalysisResult struct {
	Index    int       `json:"index"`
	Filename string    `json:"filename,omitempty"`
	Status   string    `json:"status"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Error    *Failure  `json:"error,omitempty"`
}

func NewSuccess(index int, filename string, analysis *Analysis) AnalysisResult {
	return AnalysisResult{
		Index:    index,
		Filename: filename,
		Status:   StatusSuccess,
		Analysis: analysis,
	}
}

func NewFailure(index int, filename string, kind ErrorKind, message string) AnalysisResult {
	return AnalysisResult{
		Index:    index,
		Filename: filename,
		Status:   StatusFailure,
		Error:    &Failure{Kind: kind, Message: message},
	}
}

func (r AnalysisResult) Succeeded() bool {
	return r.Status == StatusSuccess && r.Analysis != nil
}
