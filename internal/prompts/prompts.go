// Package prompts holds the task templates sent to the LLM. Templates use
// f-string placeholders ({context}, {patient_info}, {query}).
package prompts

import (
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/prompts"
)

var ErrMissingVariable = errors.New("missing template variable")

const (
	VarContext     = "context"
	VarPatientInfo = "patient_info"
	VarQuery       = "query"
	VarCurrentYear = "current_year"
	VarInput       = "input"
)

const (
	SummaryInstruction  = "Summarize the document"
	HistoryInstruction  = "Generate a comprehensive patient history summary"
	ResponseInstruction = "Please provide the most accurate response based on the query"
)

// Task is one kind of generation: the fixed instruction used for retrieval and
// the template it fills.
type Task struct {
	Name        string
	Instruction string
	Template    prompts.PromptTemplate
}

// Validate fails fast when values lack a template variable. The retrieved
// context is filled in later and is not checked.
func (t Task) Validate(values map[string]any) error {
	for _, v := range t.Template.InputVariables {
		if v == VarContext {
			continue
		}
		if _, ok := values[v]; !ok {
			return fmt.Errorf("%s: %w: %s", t.Name, ErrMissingVariable, v)
		}
	}
	return nil
}

func newTemplate(template string, inputVariables []string, partials map[string]any) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:         template,
		InputVariables:   inputVariables,
		TemplateFormat:   prompts.TemplateFormatFString,
		PartialVariables: partials,
	}
}

func Summary() Task {
	return Task{
		Name:        "summary",
		Instruction: SummaryInstruction,
		Template:    newTemplate(summaryTemplate, []string{VarContext}, nil),
	}
}

// History builds the history task. A zero currentYear means the wall-clock year.
func History(currentYear int) Task {
	if currentYear <= 0 {
		currentYear = time.Now().Year()
	}
	return Task{
		Name:        "history",
		Instruction: HistoryInstruction,
		Template: newTemplate(historyTemplate, []string{VarContext, VarPatientInfo},
			map[string]any{VarCurrentYear: fmt.Sprint(currentYear)}),
	}
}

func Response() Task {
	return Task{
		Name:        "response",
		Instruction: ResponseInstruction,
		Template:    newTemplate(chatbotTemplate, []string{VarContext, VarPatientInfo, VarQuery}, nil),
	}
}

const summaryTemplate = `
You are an expert medical professional tasked with creating a concise yet comprehensive summary of a medical document.
Your summary must be factually accurate, clinically relevant, and organized in a way that highlights key information.
SUMMARY FORMAT:
1. Begin with 1-2 sentence overview of the document's key content
2. Organize the remaining information into clinically relevant sections
3. Use concise, clear language
4. Include specific values, measurements, and dates where provided
5. Focus more on the dates and mention dates
6. Total length should be approximately 150-200 words depending on document complexity

<context>
{context}
</context>
`

const historyTemplate = `
You are an expert medical professional creating a comprehensive summary of a patient's medical history based on document summaries and patient information. Your goal is to produce a medically accurate, chronologically organized narrative that would help a new physician quickly understand this patient's medical journey.

PATIENT INFORMATION:
{patient_info}

DOCUMENT SUMMARIES:
{context}

INSTRUCTIONS FOR COMPREHENSIVE SUMMARY:
1. First, carefully review and extract all information from the PATIENT INFORMATION section. This contains verified demographic details, known conditions, and background that must be accurately represented.

2. Create a chronological timeline of the patient's medical events using date information from document summaries. Sort all documents by their dates (DD/MM/YYYY format) before synthesizing the information.

3. Organize your summary into these mandatory sections:
   - **Demographics and Background**: Accurately state patient's name, age (calculate from DOB), gender, occupation, height, weight, blood group, and lifestyle factors exactly as provided in PATIENT INFORMATION.
   - **Chief Complaints and Present Illness**: Identify the primary medical issues and their progression over time.
   - **Past Medical History**: Include all conditions mentioned in patient information and document summaries.
   - **Medications**: Document all medications mentioned, with dates when they were prescribed or changed.
   - **Allergies**: List all allergies exactly as stated in patient information.
   - **Surgical History and Procedures**: Detail all surgical procedures with exact dates.
   - **Laboratory and Diagnostic Findings**: Organize test results chronologically, noting abnormal values and trends.
   - **Assessment and Diagnoses**: Summarize diagnoses from most recent to earliest.
   - **Treatment Plan and Recommendations**: Include all treatment recommendations with their dates. Do not put much emphasis on treatment plans that are old.

4. For each document summary, extract:
   - The document type (e.g., "Blood test Report", "Imaging Report")
   - The exact date in DD/MM/YYYY format
   - All significant findings, results, or clinical notes
   - Any diagnoses, treatments, or recommendations

5. When integrating information:
   - Maintain strict chronological order within each section
   - Include specific dates for all events, tests, and procedures
   - Note significant changes in test results or clinical status over time
   - Preserve medical terminology and specific values/measurements
   - Identify connections between different findings and their clinical significance

6. If information is truly not available for a section despite being in patient information or document summaries, only then state "Not documented."

7. Use the patient's actual age (calculated from date of birth) and current year ({current_year}).

8. Include a brief conclusion summarizing the patient's current status and key medical concerns.

COMPREHENSIVE SUMMARY:
`

const chatbotTemplate = `
You are a medical chatbot designed to assist users by providing accurate and personalized responses based on a patient's medical records and inquiries. Your responses should be factually correct, concise, and user-friendly.

PATIENT INFORMATION:
{patient_info}

USER QUERY:
{query}

DOCUMENTS:
You have access to the following patient documents:
{context}

INSTRUCTIONS FOR RESPONSE:
1. Carefully review the USER QUERY and identify the specific information being requested.
2. Search through the DOCUMENTS provided to extract relevant information that addresses the query. Use document metadata (e.g., type, date) to prioritize contextually relevant documents.
3. Cross-reference the extracted information with PATIENT INFORMATION to ensure the response is personalized and clinically accurate.
4. Provide a concise, clear answer or recommendation based on the extracted information from the documents.
5. If the requested information cannot be found in the DOCUMENTS or PATIENT INFORMATION, state "Not documented" or "Unable to provide information at this time."

RESPONSE FORMAT:
- Begin with a friendly greeting or acknowledgment of the user's inquiry.
- Provide a concise answer or recommendation based on the context and patient documents.
- Include specific values, dates, or findings from the documents where applicable.
- Offer additional resources or suggestions if applicable.

RESPONSE:
`
