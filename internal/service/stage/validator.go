package stage

import (
	"stagepay/internal/apperr"
	"stagepay/internal/model"
)

const (
	ReasonTeamPhotoMissing       = "team_photo_missing"
	ReasonTeamInvoiceMissing     = "team_invoice_missing"
	ReasonMaterialPhotoMissing   = "material_photo_missing"
	ReasonMaterialReceiptMissing = "material_receipt_missing"
	ReasonStagePhotoMissing      = "stage_photo_missing"
	ReasonStageVideoMissing      = "stage_video_missing"
)

func set(s *string) bool {
	return s != nil && *s != ""
}

// ValidateCompletion returns every missing piece of documentation at once.
func ValidateCompletion(doc *model.StageDocumentation) error {
	if doc == nil {
		doc = &model.StageDocumentation{}
	}

	var photos, videos int
	for _, m := range doc.Media {
		switch m.Kind {
		case model.MediaPhoto:
			photos++
		case model.MediaVideo:
			videos++
		}
	}
	hasDocuments := len(doc.Documents) > 0

	var reasons []string

	if len(doc.TeamMembers) > 0 {
		var teamPhoto, teamInvoice bool
		for _, m := range doc.TeamMembers {
			teamPhoto = teamPhoto || set(m.PhotoURL)
			teamInvoice = teamInvoice || set(m.InvoiceURL)
		}
		if !teamPhoto && photos == 0 {
			reasons = append(reasons, ReasonTeamPhotoMissing)
		}
		if !teamInvoice && !hasDocuments {
			reasons = append(reasons, ReasonTeamInvoiceMissing)
		}
	}

	if len(doc.Materials) > 0 {
		var materialPhoto, receipt bool
		for _, m := range doc.Materials {
			materialPhoto = materialPhoto || set(m.PhotoURL)
			receipt = receipt || set(m.ReceiptURL)
		}
		if !materialPhoto && photos == 0 {
			reasons = append(reasons, ReasonMaterialPhotoMissing)
		}
		if !receipt && !hasDocuments {
			reasons = append(reasons, ReasonMaterialReceiptMissing)
		}
	}

	if photos == 0 {
		reasons = append(reasons, ReasonStagePhotoMissing)
	}
	if videos == 0 {
		reasons = append(reasons, ReasonStageVideoMissing)
	}

	if len(reasons) > 0 {
		return apperr.Precondition("stage documentation is incomplete", reasons...)
	}
	return nil
}
