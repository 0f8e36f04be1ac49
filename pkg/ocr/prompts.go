package ocr

// Task identifies one of the pre-defined OCR instructions understood by
// HunyuanOCR. Callers that need something else can bypass the catalog by
// setting Options.Prompt to a literal instruction string.
type Task string

const (
	// Text spotting
	SpottingEN Task = "spotting_en"
	SpottingZH Task = "spotting_zh"
	// Parsing
	Formula  Task = "formula"
	Table    Task = "table"
	Chart    Task = "chart"
	Document Task = "document"
	// Information extraction
	Subtitles Task = "subtitles"
	// Translation
	TranslateEN Task = "translate_to_english"
)

// DefaultTask is used when a request specifies neither a task nor a
// literal prompt.
const DefaultTask = SpottingEN

var taskPrompts = map[Task]string{
	SpottingEN: "Detect and recognize text in the image, and output the text coordinates in a formatted manner.",
	SpottingZH: "检测并识别图片中的文字，将文本坐标格式化输出。",
	Formula:    "Identify the formula in the image and represent it using LaTeX format.",
	Table:      "Parse the table in the image into HTML.",
	Chart:      "Parse the chart in the image; use Mermaid format for flowcharts and Markdown for other charts.",
	Document: "Extract all information from the main body of the document image and represent it " +
		"in markdown format, ignoring headers and footers. Tables should be expressed in HTML " +
		"format, formulas in the document should be represented using LaTeX format, and the " +
		"parsing should be organized according to the reading order.",
	Subtitles: "Extract the subtitles from the image.",
	TranslateEN: "First extract the text, then translate the text content into English. If it is a " +
		"document, ignore the header and footer. Formulas should be represented in LaTeX " +
		"format, and tables should be represented in HTML format.",
}

// Instruction returns the prompt text for the task, or the empty string
// for an unknown task.
func (t Task) Instruction() string {
	return taskPrompts[t]
}

// Valid reports whether t belongs to the catalog.
func (t Task) Valid() bool {
	_, ok := taskPrompts[t]
	return ok
}

// Tasks returns all catalog tasks in a stable order.
func Tasks() []Task {
	return []Task{
		SpottingEN,
		SpottingZH,
		Formula,
		Table,
		Chart,
		Document,
		Subtitles,
		TranslateEN,
	}
}
