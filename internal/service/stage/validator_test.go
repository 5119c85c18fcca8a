package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
)

func str(s string) *string { return &s }

func completeDoc() *model.StageDocumentation {
	return &model.StageDocumentation{
		TeamMembers: []model.TeamMember{{Name: "Ana", PhotoURL: str("team.jpg"), InvoiceURL: str("inv.pdf")}},
		Materials:   []model.Material{{Name: "Tiles", PhotoURL: str("tiles.jpg"), ReceiptURL: str("rcpt.pdf")}},
		Media: []model.MediaItem{
			{Kind: model.MediaPhoto, URL: "a.jpg"},
			{Kind: model.MediaVideo, URL: "a.mp4"},
		},
	}
}

func TestValidateCompletion_Complete(t *testing.T) {
	assert.NoError(t, ValidateCompletion(completeDoc()))
}

func TestValidateCompletion_EmptyNeedsPhotoAndVideo(t *testing.T) {
	err := ValidateCompletion(&model.StageDocumentation{})
	assert.Equal(t, []string{ReasonStagePhotoMissing, ReasonStageVideoMissing}, apperr.Reasons(err))
}

func TestValidateCompletion_CollectsEveryViolation(t *testing.T) {
	doc := &model.StageDocumentation{
		TeamMembers: []model.TeamMember{{Name: "Ana"}},
		Materials:   []model.Material{{Name: "Tiles"}},
	}

	err := ValidateCompletion(doc)
	var pe *apperr.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{
		ReasonTeamPhotoMissing,
		ReasonTeamInvoiceMissing,
		ReasonMaterialPhotoMissing,
		ReasonMaterialReceiptMissing,
		ReasonStagePhotoMissing,
		ReasonStageVideoMissing,
	}, pe.Reasons)
}

func TestValidateCompletion_StageLevelEvidenceCoversTeamAndMaterials(t *testing.T) {
	doc := &model.StageDocumentation{
		TeamMembers: []model.TeamMember{{Name: "Ana"}},
		Materials:   []model.Material{{Name: "Tiles"}},
		Media: []model.MediaItem{
			{Kind: model.MediaPhoto, URL: "a.jpg"},
			{Kind: model.MediaVideo, URL: "a.mp4"},
		},
		Documents: []model.Document{{Title: "invoice", URL: "inv.pdf"}},
	}
	assert.NoError(t, ValidateCompletion(doc))
}

// Removing any single supporting item fails with exactly that reason.
func TestValidateCompletion_SingleRemovalNamesReason(t *testing.T) {
	cases := []struct {
		name   string
		remove func(d *model.StageDocumentation)
		want   []string
	}{
		{"team photo and stage photos", func(d *model.StageDocumentation) {
			d.TeamMembers[0].PhotoURL = nil
			d.Materials = nil
			d.Media = d.Media[1:]
		}, []string{ReasonTeamPhotoMissing, ReasonStagePhotoMissing}},
		{"team invoice", func(d *model.StageDocumentation) {
			d.TeamMembers[0].InvoiceURL = nil
		}, []string{ReasonTeamInvoiceMissing}},
		{"material receipt", func(d *model.StageDocumentation) {
			d.Materials[0].ReceiptURL = nil
		}, []string{ReasonMaterialReceiptMissing}},
		{"video", func(d *model.StageDocumentation) {
			d.Media = d.Media[:1]
		}, []string{ReasonStageVideoMissing}},
		{"empty url counts as missing", func(d *model.StageDocumentation) {
			d.TeamMembers[0].InvoiceURL = str("")
		}, []string{ReasonTeamInvoiceMissing}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := completeDoc()
			tc.remove(doc)
			assert.Equal(t, tc.want, apperr.Reasons(ValidateCompletion(doc)))
		})
	}
}
