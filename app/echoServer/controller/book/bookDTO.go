package book

type UpsertBookReq struct {
	Title       string  `json:"title" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	ISBN        string  `json:"isbn" validate:"required"`
	Category    string  `json:"category" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	TotalCopies int     `json:"total_copies" validate:"gte=0"`
}

type SetCopiesReq struct {
	TotalCopies int `json:"total_copies" validate:"gte=0"`
}
