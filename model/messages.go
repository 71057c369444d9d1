package model

// User-facing messages. The controller only surfaces these; internal error
// detail goes to the log.
const (
	MsgSelectFile        = "파일을 선택해주세요."
	MsgUnsupportedExt    = "PDF 또는 이미지(JPG/PNG) 파일만 업로드할 수 있습니다."
	MsgFileTooLarge      = "파일 크기가 허용된 최대 크기를 초과했습니다."
	MsgEmptyFile         = "빈 파일은 업로드할 수 없습니다."
	MsgWorkflowFailed    = "업로드 또는 분석에 실패했습니다."
	MsgResultFailed      = "결과를 불러오지 못했습니다. 잠시 후 다시 시도하세요."
	MsgExportFailed      = "보고서 다운로드에 실패했습니다."
	MsgSuggestFailed     = "개선안을 불러오지 못했습니다."
	MsgUnsupportedFormat = "지원하지 않는 보고서 형식입니다."
	MsgBusy              = "이미 업로드 또는 분석이 진행 중입니다."
	MsgNoDocument        = "분석된 문서가 없습니다."
	MsgExportInFlight    = "보고서를 이미 다운로드하는 중입니다."
	MsgNothingToRetry    = "다시 시도할 작업이 없습니다."
	MsgSessionClosed     = "세션이 종료되었습니다."
	MsgArchiveDisabled   = "보고서 보관소가 설정되지 않았습니다."
	MsgRateLimited       = "요청이 너무 많습니다. 잠시 후 다시 시도하세요."
	MsgLoginFailed       = "아이디 또는 비밀번호가 올바르지 않습니다."
	MsgUnauthorized      = "로그인이 필요합니다."
	MsgInternal          = "요청을 처리하지 못했습니다."
)

var stageLabels = map[Stage]string{
	StageExtract: "텍스트 추출 중",
	StageSplit:   "조항 분리 중",
	StageLLM:     "LLM 분석 중",
	StageRisk:    "위험도 계산 중",
	StageDone:    "분석 완료",
}

// StageLabel returns the label for a stage, with a generic fallback for
// stages outside the vocabulary.
func StageLabel(s Stage) string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return "분석 진행 중"
}

var riskLabels = map[RiskLevel]string{
	RiskHigh:   "위험",
	RiskMedium: "주의",
	RiskLow:    "낮음",
}

// Label returns the localized label for the level
func (l RiskLevel) Label() string {
	return riskLabels[l.Normalize()]
}
